package supplier

import (
	"errors"
	"fmt"

	"github.com/dudk/clipengine/signal"
)

// TempoAdaption defines how material follows tempo of the timeline.
type TempoAdaption int

const (
	// TempoIgnore plays material at its native speed.
	TempoIgnore TempoAdaption = iota
	// TempoVariSpeed changes speed and pitch together.
	TempoVariSpeed
	// TempoKeepPitch changes speed keeping the pitch.
	TempoKeepPitch
)

func (t TempoAdaption) String() string {
	switch t {
	case TempoIgnore:
		return "ignore"
	case TempoVariSpeed:
		return "varispeed"
	case TempoKeepPitch:
		return "keeppitch"
	}
	return "unknown"
}

// ErrUnknownTempoAdaption is returned when tempo adaption can't be parsed.
var ErrUnknownTempoAdaption = errors.New("unknown tempo adaption")

// ParseTempoAdaption parses the value returned by String. Empty string is
// TempoIgnore.
func ParseTempoAdaption(s string) (TempoAdaption, error) {
	switch s {
	case "", "ignore":
		return TempoIgnore, nil
	case "varispeed":
		return TempoVariSpeed, nil
	case "keeppitch":
		return TempoKeepPitch, nil
	}
	return TempoIgnore, fmt.Errorf("%w: %q", ErrUnknownTempoAdaption, s)
}

// Chain is the ordered composition of suppliers owned by a clip. From
// the foot to the head: Recorder, Cache, Section, Fader, Looper,
// TimeStretcher, Resampler, Amplifier.
type Chain struct {
	Recorder      *Recorder
	Cache         *Cache
	Section       *Section
	Fader         *Fader
	Looper        *Looper
	TimeStretcher *TimeStretcher
	Resampler     *Resampler
	Amplifier     *Amplifier
}

// NewChain composes a chain on top of the material. Material can be nil
// if the chain is created for recording.
func NewChain(material Supplier) *Chain {
	c := Chain{}
	c.Recorder = NewRecorder(material)
	c.Cache = NewCache(c.Recorder)
	c.Section = NewSection(c.Cache)
	c.Fader = NewFader(c.Section)
	c.Looper = NewLooper(c.Fader)
	c.TimeStretcher = NewTimeStretcher(c.Looper)
	c.Resampler = NewResampler(c.TimeStretcher)
	c.Amplifier = NewAmplifier(c.Resampler)
	return &c
}

// Head returns the outermost supplier.
func (c *Chain) Head() Supplier {
	return c.Amplifier
}

// Prepare allocates buffers of decorators for blocks up to maxFrames.
func (c *Chain) Prepare(numChannels, maxFrames int) {
	c.Resampler.Prepare(numChannels, maxFrames)
	c.TimeStretcher.Prepare(numChannels, maxFrames)
}

// SetLooped switches between infinite looping with boundary fades and
// single play with section fades.
func (c *Chain) SetLooped(looped bool) {
	if looped {
		c.Looper.SetLoopBehavior(Infinitely())
	} else {
		c.Looper.SetLoopBehavior(UntilEndOfCycle(0))
	}
	c.Looper.SetFadesEnabled(looped)
	c.Fader.SetEnabled(!looped)
}

// SetBounds selects the section of material. Fades are applied at the
// edges cutting into material.
func (c *Chain) SetBounds(b Bounds) {
	c.Section.SetBounds(b)
	b = c.Section.Bounds()
	c.Fader.SetFades(b.Start > 0, b.Length > 0 && b.Start+b.Length < c.Cache.FrameCount())
}

// SetTempo sets tempo adaption mode and the factor between timeline tempo
// and native tempo of material.
func (c *Chain) SetTempo(mode TempoAdaption, factor float64) {
	switch mode {
	case TempoKeepPitch:
		c.Resampler.SetEnabled(false)
		c.Resampler.SetTempoFactor(1)
		c.TimeStretcher.SetEnabled(true)
		c.TimeStretcher.SetTempoFactor(factor)
	case TempoVariSpeed:
		c.TimeStretcher.SetEnabled(false)
		c.Resampler.SetEnabled(true)
		c.Resampler.SetTempoFactor(factor)
	default:
		c.TimeStretcher.SetEnabled(false)
		c.Resampler.SetEnabled(true)
		c.Resampler.SetTempoFactor(1)
	}
}

// SupplyAudio supplies the head of the chain.
func (c *Chain) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	return c.Amplifier.SupplyAudio(req, dest)
}

// SupplyMidi supplies the head of the chain.
func (c *Chain) SupplyMidi(req MidiRequest, sink EventSink) Response {
	return c.Amplifier.SupplyMidi(req, sink)
}
