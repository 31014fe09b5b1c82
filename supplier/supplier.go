// Package supplier provides composable producers of audio and MIDI material.
//
// Every supplier works in its own frame space, frame 0 being the start of
// its material. Decorators wrap an inner supplier and transform either the
// request before delegation or the destination after it, so consumers never
// need to know which transformations are present.
//
// Suppliers never fail during supply. If material is exhausted or
// unavailable, fewer frames are reported as written and the caller treats
// the rest of the destination as silence.
package supplier

import (
	"math"

	"github.com/dudk/clipengine/signal"
)

// EndOfMaterial is reported as next frame when there is nothing to continue
// with.
const EndOfMaterial = -1

// maxChannels is the capacity of preallocated channel views.
const maxChannels = 16

// Kind of the material.
type Kind int

const (
	// Audio material.
	Audio Kind = iota
	// Midi material.
	Midi
)

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Midi:
		return "midi"
	}
	return "unknown"
}

type (
	// AudioRequest asks for audio material. The number of requested frames
	// is the size of the destination buffer.
	AudioRequest struct {
		// StartFrame may be negative to encode material which should have
		// started earlier. Leading negative frames are written as silence.
		StartFrame     int
		DestSampleRate float64
	}

	// MidiRequest asks for MIDI events within a frame window.
	MidiRequest struct {
		StartFrame     int
		DestFrameCount int
		DestSampleRate float64
	}

	// Response describes the result of supply.
	Response struct {
		// FramesWritten is the number of destination frames covered.
		FramesWritten int
		// FramesConsumed is the number of frames advanced in the supplier's
		// own frame space.
		FramesConsumed int
		// NextFrame is where the next request should start to stay
		// continuous. It's cycle-aware: looping suppliers keep it growing
		// across cycles.
		NextFrame int
		// NextInnerFrame is NextFrame folded into [0, FrameCount).
		NextInnerFrame int
	}

	// Supplier produces audio and MIDI material.
	Supplier interface {
		SupplyAudio(AudioRequest, signal.Float64) Response
		SupplyMidi(MidiRequest, EventSink) Response
		// FrameCount is the exact length of material in frames.
		FrameCount() int
		// FrameRate is the native rate of the material.
		FrameRate() float64
		NumChannels() int
		Kind() Kind
	}
)

// Exhausted returns true if there is nothing to continue with.
func (r Response) Exhausted() bool {
	return r.NextFrame == EndOfMaterial
}

// nextFrames builds next frame fields for a supplier with finite material.
func nextFrames(next, frameCount int) (int, int) {
	if next >= frameCount {
		return EndOfMaterial, EndOfMaterial
	}
	if next < 0 {
		return next, 0
	}
	return next, next
}

// cover computes the response for a window of n frames starting at start
// over material of frameCount frames. Leading negative frames count as
// written, but not as consumed.
func cover(start, n, frameCount int) Response {
	end := start + n
	if end > frameCount {
		end = frameCount
	}
	if end <= start {
		return Response{NextFrame: EndOfMaterial, NextInnerFrame: EndOfMaterial}
	}
	materialStart := start
	if materialStart < 0 {
		materialStart = 0
	}
	consumed := 0
	if end > materialStart {
		consumed = end - materialStart
	}
	next, nextInner := nextFrames(end, frameCount)
	return Response{
		FramesWritten:  end - start,
		FramesConsumed: consumed,
		NextFrame:      next,
		NextInnerFrame: nextInner,
	}
}

// ratioOf returns how many inner frames correspond to one destination frame.
func ratioOf(innerRate, destRate, factor float64) float64 {
	if destRate <= 0 || innerRate <= 0 {
		return factor
	}
	return innerRate / destRate * factor
}

// roundFrames rounds fractional frame positions.
func roundFrames(v float64) int {
	return int(math.Round(v))
}

// view returns channel view of frames [start, end) of dest backed by scratch.
func view(scratch *signal.Float64, dest signal.Float64, start, end int) signal.Float64 {
	*scratch = dest.Frames(*scratch, start, end)
	return *scratch
}

func newScratch() signal.Float64 {
	return make(signal.Float64, 0, maxChannels)
}
