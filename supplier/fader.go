package supplier

import (
	"github.com/dudk/clipengine/signal"
)

// Fader applies short linear fades at the start and at the end of inner
// material. It's used when material is cut out of a longer recording and
// played without looping.
type Fader struct {
	inner    Supplier
	fadeIn   bool
	fadeOut  bool
	disabled bool
}

// NewFader wraps the supplier without fades.
func NewFader(inner Supplier) *Fader {
	return &Fader{
		inner: inner,
	}
}

// SetFades defines which edges are faded.
func (f *Fader) SetFades(in, out bool) {
	f.fadeIn = in
	f.fadeOut = out
}

// SetEnabled toggles the fader.
func (f *Fader) SetEnabled(enabled bool) {
	f.disabled = !enabled
}

func (f *Fader) length() int {
	length := defaultFadeLength
	if rate := f.inner.FrameRate(); rate > 0 {
		length = signal.FramesOf(rate, FadeDuration)
	}
	if half := f.inner.FrameCount() / 2; length > half {
		length = half
	}
	return length
}

// SupplyAudio implements Supplier.
func (f *Fader) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	resp := f.inner.SupplyAudio(req, dest)
	if f.disabled || !f.fadeIn && !f.fadeOut {
		return resp
	}
	length := f.length()
	if length == 0 {
		return resp
	}
	count := f.inner.FrameCount()
	for i := 0; i < resp.FramesWritten; i++ {
		frame := req.StartFrame + i
		if frame < 0 {
			continue
		}
		factor := 1.0
		if f.fadeIn && frame < length {
			factor = float64(frame) / float64(length)
		} else if distance := count - frame; f.fadeOut && distance < length {
			factor = float64(distance) / float64(length)
		}
		if factor == 1 {
			continue
		}
		for c := range dest {
			dest[c][i] *= factor
		}
	}
	return resp
}

// SupplyMidi implements Supplier.
func (f *Fader) SupplyMidi(req MidiRequest, sink EventSink) Response {
	return f.inner.SupplyMidi(req, sink)
}

// FrameCount implements Supplier.
func (f *Fader) FrameCount() int {
	return f.inner.FrameCount()
}

// FrameRate implements Supplier.
func (f *Fader) FrameRate() float64 {
	return f.inner.FrameRate()
}

// NumChannels implements Supplier.
func (f *Fader) NumChannels() int {
	return f.inner.NumChannels()
}

// Kind implements Supplier.
func (f *Fader) Kind() Kind {
	return f.inner.Kind()
}
