//go:build !clipdebug

package supplier

// checkNextInnerFrame degrades silently in release builds: an out-of-range
// next inner frame is folded to the material start.
func checkNextInnerFrame(frame, frameCount int) int {
	if frame < 0 || frameCount <= 0 {
		return 0
	}
	if frame >= frameCount {
		return frame % frameCount
	}
	return frame
}
