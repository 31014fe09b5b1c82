package supplier

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine/signal"
)

// Cache keeps inner material resident in memory once loaded. Load and
// Unload must be called outside of the real-time context.
type Cache struct {
	inner  Supplier
	cached Supplier
}

// NewCache wraps the supplier. Nothing is cached until Load is called.
func NewCache(inner Supplier) *Cache {
	return &Cache{
		inner: inner,
	}
}

// Load reads the whole inner material into memory.
func (c *Cache) Load() {
	count := c.inner.FrameCount()
	switch c.inner.Kind() {
	case Midi:
		collector := eventCollector{}
		c.inner.SupplyMidi(MidiRequest{
			DestFrameCount: count,
			DestSampleRate: c.inner.FrameRate(),
		}, &collector)
		c.cached = NewMidiMaterial(collector.events, count, c.inner.FrameRate())
	default:
		buf := signal.EmptyFloat64(c.inner.NumChannels(), count)
		c.inner.SupplyAudio(AudioRequest{
			DestSampleRate: c.inner.FrameRate(),
		}, buf)
		c.cached = NewAudioMaterial(buf, c.inner.FrameRate())
	}
}

// Unload releases cached material.
func (c *Cache) Unload() {
	c.cached = nil
}

// IsLoaded returns true if material is served from memory.
func (c *Cache) IsLoaded() bool {
	return c.cached != nil
}

func (c *Cache) current() Supplier {
	if c.cached != nil {
		return c.cached
	}
	return c.inner
}

// SupplyAudio implements Supplier.
func (c *Cache) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	return c.current().SupplyAudio(req, dest)
}

// SupplyMidi implements Supplier.
func (c *Cache) SupplyMidi(req MidiRequest, sink EventSink) Response {
	return c.current().SupplyMidi(req, sink)
}

// FrameCount implements Supplier.
func (c *Cache) FrameCount() int {
	return c.inner.FrameCount()
}

// FrameRate implements Supplier.
func (c *Cache) FrameRate() float64 {
	return c.inner.FrameRate()
}

// NumChannels implements Supplier.
func (c *Cache) NumChannels() int {
	return c.inner.NumChannels()
}

// Kind implements Supplier.
func (c *Cache) Kind() Kind {
	return c.inner.Kind()
}

// eventCollector is a growing EventSink.
type eventCollector struct {
	events []Event
}

func (c *eventCollector) AddEvent(frame int, msg midi.Message) {
	c.events = append(c.events, Event{Frame: frame, Message: msg})
}
