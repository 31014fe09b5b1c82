//go:build clipdebug

package supplier

import "fmt"

// checkNextInnerFrame panics in debug builds when a supplier reports a next
// inner frame outside of its material.
func checkNextInnerFrame(frame, frameCount int) int {
	if frame < 0 || frame >= frameCount {
		panic(fmt.Sprintf("next inner frame %d out of range [0, %d)", frame, frameCount))
	}
	return frame
}
