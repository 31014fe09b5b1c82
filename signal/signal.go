// Package signal provides non-interleaved buffers which are passed through
// supplier chains. Views returned by Frames share memory with the original
// buffer, so nothing in the real-time path allocates.
package signal

import (
	"math"
	"time"
)

// Float64 is a non-interleaved float64 signal. First dimension is channel,
// second is frame.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed frames for this sample rate.
func DurationOf(sampleRate float64, frames int64) time.Duration {
	return time.Duration(float64(frames) / sampleRate * float64(time.Second))
}

// FramesOf returns number of frames which fit into duration at sample rate.
func FramesOf(sampleRate float64, d time.Duration) int {
	return int(math.Round(d.Seconds() * sampleRate))
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	divider := float64(ints.BitDepth.divider())

	for i := range floats {
		floats[i] = make([]float64, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / divider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	multiplier := float64(bitDepth.multiplier())

	ints := make([]int, len(floats[0])*numChannels)

	for j := range floats {
		for i := range floats[j] {
			ints[i*numChannels+j] = int(floats[j][i] * multiplier)
		}
	}
	return ints
}

// EmptyFloat64 returns an empty buffer of specified dimensions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of frames in this sample slice.
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Frames returns a view of frames [start, end). The view shares memory with
// the buffer. The channel headers are written into dst, which should be
// preallocated by the caller with NumChannels capacity to avoid allocation.
func (floats Float64) Frames(dst Float64, start, end int) Float64 {
	dst = dst[:0]
	for i := range floats {
		dst = append(dst, floats[i][start:end])
	}
	return dst
}

// Clear writes silence into the whole buffer.
func (floats Float64) Clear() {
	for i := range floats {
		for j := range floats[i] {
			floats[i][j] = 0
		}
	}
}

// ClearFrom writes silence starting at frame.
func (floats Float64) ClearFrom(frame int) {
	for i := range floats {
		if frame >= len(floats[i]) {
			continue
		}
		for j := range floats[i][frame:] {
			floats[i][frame+j] = 0
		}
	}
}

// Gain multiplies every sample by the factor.
func (floats Float64) Gain(factor float64) {
	if factor == 1 {
		return
	}
	for i := range floats {
		for j := range floats[i] {
			floats[i][j] *= factor
		}
	}
}

// ModifyFrames calls fn for every sample and replaces it with the result.
func (floats Float64) ModifyFrames(fn func(frame int, sample float64) float64) {
	for i := range floats {
		for j := range floats[i] {
			floats[i][j] = fn(j, floats[i][j])
		}
	}
}

// CopyFrom copies frames from the source and returns number of frames
// copied. Missing source channels are written as silence, surplus source
// channels are ignored.
func (floats Float64) CopyFrom(source Float64) int {
	n := 0
	for i := range floats {
		if i < len(source) {
			n = copy(floats[i], source[i])
			continue
		}
		for j := range floats[i] {
			floats[i][j] = 0
		}
	}
	return n
}

// MixFrom adds the source into the buffer.
func (floats Float64) MixFrom(source Float64) {
	for i := range floats {
		if i >= len(source) {
			return
		}
		for j := range floats[i] {
			if j >= len(source[i]) {
				break
			}
			floats[i][j] += source[i][j]
		}
	}
}

// Append buffers set to existing one. New buffer is returned if floats is nil.
func (floats Float64) Append(source Float64) Float64 {
	if floats == nil {
		floats = make([][]float64, source.NumChannels())
		for i := range floats {
			floats[i] = make([]float64, 0, source.Size())
		}
	}
	for i := range source {
		floats[i] = append(floats[i], source[i]...)
	}
	return floats
}

// Slice creates a new copy of buffer from start position with defined length.
// If buffer doesn't have enough samples, shortened block is returned.
//
// if start >= buffer size, nil is returned
// if start + len >= buffer size, len is decreased till the end of slice
// if start < 0, nil is returned
func (floats Float64) Slice(start int, len int) Float64 {
	if floats == nil || start >= floats.Size() || start < 0 {
		return nil
	}
	end := start + len
	result := make([][]float64, floats.NumChannels())
	for i := range floats {
		if end > floats.Size() {
			end = floats.Size()
		}
		result[i] = append(result[i], floats[i][start:end]...)
	}
	return result
}

// Interleave32 writes the signal into interleaved float32 buffer used by
// host audio APIs. Returns number of frames written.
func (floats Float64) Interleave32(dst []float32) int {
	numChannels := floats.NumChannels()
	if numChannels == 0 {
		return 0
	}
	frames := floats.Size()
	if max := len(dst) / numChannels; frames > max {
		frames = max
	}
	for i := 0; i < frames; i++ {
		for j := range floats {
			dst[i*numChannels+j] = float32(floats[j][i])
		}
	}
	return frames
}

// Deinterleave32 reads interleaved float32 data into the signal. Returns
// number of frames read.
func (floats Float64) Deinterleave32(src []float32) int {
	numChannels := floats.NumChannels()
	if numChannels == 0 {
		return 0
	}
	frames := len(src) / numChannels
	if frames > floats.Size() {
		frames = floats.Size()
	}
	for i := 0; i < frames; i++ {
		for j := range floats {
			floats[j][i] = float64(src[i*numChannels+j])
		}
	}
	return frames
}
