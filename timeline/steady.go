package timeline

import (
	"math"
	"sync/atomic"
)

// Steady is a timeline with constant tempo driven by processed frames. It
// implements both Timeline and Transport. Controls are safe to call from
// any goroutine, Advance is called by the processing cycle.
type Steady struct {
	sampleRate  float64
	beatsPerBar int

	tempo  atomic.Uint64
	frames atomic.Int64
	state  atomic.Int32
}

// NewSteady creates stopped timeline at position zero.
func NewSteady(sampleRate, tempo float64, beatsPerBar int) *Steady {
	s := Steady{
		sampleRate:  sampleRate,
		beatsPerBar: beatsPerBar,
	}
	s.tempo.Store(math.Float64bits(tempo))
	return &s
}

// CurrentMoment implements Timeline.
func (s *Steady) CurrentMoment() Moment {
	return Moment{
		Cursor:      float64(s.frames.Load()) / s.sampleRate,
		Tempo:       s.Tempo(),
		BeatsPerBar: s.beatsPerBar,
		SampleRate:  s.sampleRate,
		Playing:     s.TransportState() == Playing,
	}
}

// TransportState implements Transport.
func (s *Steady) TransportState() TransportState {
	return TransportState(s.state.Load())
}

// Tempo returns current tempo.
func (s *Steady) Tempo() float64 {
	return math.Float64frombits(s.tempo.Load())
}

// SetTempo changes tempo.
func (s *Steady) SetTempo(bpm float64) {
	s.tempo.Store(math.Float64bits(bpm))
}

// Play starts the transport.
func (s *Steady) Play() {
	s.state.Store(int32(Playing))
}

// Pause pauses the transport keeping position.
func (s *Steady) Pause() {
	if s.TransportState() == Playing {
		s.state.Store(int32(Paused))
	}
}

// Stop stops the transport and rewinds to zero.
func (s *Steady) Stop() {
	s.state.Store(int32(Stopped))
	s.frames.Store(0)
}

// Seek moves cursor to the position in seconds.
func (s *Steady) Seek(pos float64) {
	if pos < 0 {
		pos = 0
	}
	s.frames.Store(int64(math.Round(pos * s.sampleRate)))
}

// SeekBar moves cursor to the position in bars.
func (s *Steady) SeekBar(bar float64) {
	s.Seek(bar * s.CurrentMoment().BarDuration())
}

// Advance moves cursor by frames if transport is playing.
func (s *Steady) Advance(frames int) {
	if s.TransportState() == Playing {
		s.frames.Add(int64(frames))
	}
}
