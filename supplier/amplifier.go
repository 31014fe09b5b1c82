package supplier

import (
	"math"

	"github.com/dudk/clipengine/signal"
)

// Amplifier applies volume to inner audio.
type Amplifier struct {
	inner  Supplier
	volume float64
	gain   float64
}

// NewAmplifier wraps the supplier with 0 dB volume.
func NewAmplifier(inner Supplier) *Amplifier {
	return &Amplifier{
		inner: inner,
		gain:  1,
	}
}

// SetVolume sets volume in decibels.
func (a *Amplifier) SetVolume(db float64) {
	a.volume = db
	a.gain = Gain(db)
}

// Volume returns volume in decibels.
func (a *Amplifier) Volume() float64 {
	return a.volume
}

// Gain converts decibels into linear gain factor.
func Gain(db float64) float64 {
	return math.Pow(10, db/20)
}

// SupplyAudio implements Supplier.
func (a *Amplifier) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	resp := a.inner.SupplyAudio(req, dest)
	if a.gain != 1 && resp.FramesWritten > 0 {
		for c := range dest {
			for i := 0; i < resp.FramesWritten; i++ {
				dest[c][i] *= a.gain
			}
		}
	}
	return resp
}

// SupplyMidi implements Supplier.
func (a *Amplifier) SupplyMidi(req MidiRequest, sink EventSink) Response {
	return a.inner.SupplyMidi(req, sink)
}

// FrameCount implements Supplier.
func (a *Amplifier) FrameCount() int {
	return a.inner.FrameCount()
}

// FrameRate implements Supplier.
func (a *Amplifier) FrameRate() float64 {
	return a.inner.FrameRate()
}

// NumChannels implements Supplier.
func (a *Amplifier) NumChannels() int {
	return a.inner.NumChannels()
}

// Kind implements Supplier.
func (a *Amplifier) Kind() Kind {
	return a.inner.Kind()
}
