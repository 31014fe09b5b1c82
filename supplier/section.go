package supplier

import (
	"github.com/dudk/clipengine/signal"
)

// Bounds selects a part of material. Zero length means until the end.
type Bounds struct {
	Start  int
	Length int
}

// IsDefault returns true if bounds select the whole material.
func (b Bounds) IsDefault() bool {
	return b.Start == 0 && b.Length == 0
}

// Section exposes a part of inner material as if it was the whole one.
type Section struct {
	inner   Supplier
	bounds  Bounds
	scratch signal.Float64
	sink    windowSink
}

// NewSection wraps the supplier with default bounds.
func NewSection(inner Supplier) *Section {
	return &Section{
		inner:   inner,
		scratch: newScratch(),
	}
}

// SetBounds changes selected part. Bounds are clipped to the material.
func (s *Section) SetBounds(b Bounds) {
	count := s.inner.FrameCount()
	if b.Start < 0 {
		b.Start = 0
	}
	if b.Start > count {
		b.Start = count
	}
	if b.Length < 0 || b.Start+b.Length > count {
		b.Length = 0
	}
	s.bounds = b
}

// Bounds returns current bounds.
func (s *Section) Bounds() Bounds {
	return s.bounds
}

// SupplyAudio implements Supplier.
func (s *Section) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	if s.bounds.IsDefault() {
		return s.inner.SupplyAudio(req, dest)
	}
	resp := cover(req.StartFrame, dest.Size(), s.FrameCount())
	if resp.FramesWritten == 0 {
		return resp
	}
	// leading silence is written here, inner material before the section
	// must not leak into it.
	offset := 0
	if req.StartFrame < 0 {
		offset = -req.StartFrame
		if offset > resp.FramesWritten {
			offset = resp.FramesWritten
		}
		view(&s.scratch, dest, 0, offset).Clear()
	}
	if offset < resp.FramesWritten {
		part := view(&s.scratch, dest, offset, resp.FramesWritten)
		s.inner.SupplyAudio(AudioRequest{
			StartFrame:     s.bounds.Start + req.StartFrame + offset,
			DestSampleRate: req.DestSampleRate,
		}, part)
	}
	return resp
}

// SupplyMidi implements Supplier.
func (s *Section) SupplyMidi(req MidiRequest, sink EventSink) Response {
	if s.bounds.IsDefault() {
		return s.inner.SupplyMidi(req, sink)
	}
	resp := cover(req.StartFrame, req.DestFrameCount, s.FrameCount())
	if resp.FramesWritten == 0 {
		return resp
	}
	from := 0
	if req.StartFrame < 0 {
		from = -req.StartFrame
	}
	s.sink = windowSink{
		target: sink,
		from:   from,
		to:     resp.FramesWritten,
	}
	s.inner.SupplyMidi(MidiRequest{
		StartFrame:     s.bounds.Start + req.StartFrame,
		DestFrameCount: resp.FramesWritten,
		DestSampleRate: req.DestSampleRate,
	}, &s.sink)
	return resp
}

// FrameCount implements Supplier.
func (s *Section) FrameCount() int {
	if s.bounds.Length > 0 {
		return s.bounds.Length
	}
	return s.inner.FrameCount() - s.bounds.Start
}

// FrameRate implements Supplier.
func (s *Section) FrameRate() float64 {
	return s.inner.FrameRate()
}

// NumChannels implements Supplier.
func (s *Section) NumChannels() int {
	return s.inner.NumChannels()
}

// Kind implements Supplier.
func (s *Section) Kind() Kind {
	return s.inner.Kind()
}
