// Package timeline abstracts the host transport: current position, tempo
// and quantization queries used to schedule clip transitions.
package timeline

import (
	"math"
)

// Moment is a snapshot of the timeline taken once per processing cycle.
type Moment struct {
	// Cursor is the position in seconds.
	Cursor float64
	// Tempo in beats per minute.
	Tempo       float64
	BeatsPerBar int
	SampleRate  float64
	// Playing is true if transport was already running.
	Playing bool
}

// BarDuration returns length of one bar in seconds.
func (m Moment) BarDuration() float64 {
	if m.Tempo <= 0 || m.BeatsPerBar <= 0 {
		return 0
	}
	return 60 / m.Tempo * float64(m.BeatsPerBar)
}

// Bar returns cursor position in bars.
func (m Moment) Bar() float64 {
	d := m.BarDuration()
	if d == 0 {
		return 0
	}
	return m.Cursor / d
}

// NextBar returns the position of the next bar in seconds.
func (m Moment) NextBar() float64 {
	return m.NextBoundary(Bar)
}

// NextBoundary returns the position of the next grid boundary in seconds.
func (m Moment) NextBoundary(q EvenQuantization) float64 {
	d := m.BarDuration()
	if d == 0 {
		return m.Cursor
	}
	return q.NextBoundary(m.Bar()) * d
}

// frameTolerance absorbs float error of positions computed from frames.
const frameTolerance = 1e-6

// FramesUntil returns number of frames from cursor to the position. A
// position between frames resolves to the later frame, so it's never
// reached early. Negative if position is behind the cursor.
func (m Moment) FramesUntil(pos float64) int {
	return int(math.Ceil((pos-m.Cursor)*m.SampleRate - frameTolerance))
}

// Reached returns true if cursor is at or after the position.
func (m Moment) Reached(pos float64) bool {
	return m.Cursor >= pos || (pos-m.Cursor)*m.SampleRate < frameTolerance
}

// Timeline provides moments. It's queried once per processing cycle and
// must not block.
type Timeline interface {
	CurrentMoment() Moment
}

// TransportState is the play state of the host transport.
type TransportState int

const (
	// Stopped transport.
	Stopped TransportState = iota
	// Playing transport.
	Playing
	// Paused transport.
	Paused
)

func (s TransportState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Transport reports the state of host transport. It's polled once per
// processing cycle and must not block.
type Transport interface {
	TransportState() TransportState
}

// Change is a transport change relevant for clips.
type Change int

const (
	// NoChange is not relevant.
	NoChange Change = iota
	// PlayAfterStop is transport started from stopped state.
	PlayAfterStop
	// StopAfterPlay is transport stopped while playing.
	StopAfterPlay
	// StopAfterPause is transport stopped while paused.
	StopAfterPause
	// CursorJump is repositioned play cursor.
	CursorJump
)

func (c Change) String() string {
	switch c {
	case NoChange:
		return "none"
	case PlayAfterStop:
		return "play-after-stop"
	case StopAfterPlay:
		return "stop-after-play"
	case StopAfterPause:
		return "stop-after-pause"
	case CursorJump:
		return "cursor-jump"
	}
	return "unknown"
}

// Classify returns relevant change between two transport states.
func Classify(old, new TransportState) Change {
	switch {
	case old == Stopped && new == Playing:
		return PlayAfterStop
	case old == Playing && new == Stopped:
		return StopAfterPlay
	case old == Paused && new == Stopped:
		return StopAfterPause
	}
	return NoChange
}

// jumpTolerance is the cursor deviation in seconds treated as a jump.
const jumpTolerance = 0.005

// Watcher detects transport changes by comparing consecutive observations.
type Watcher struct {
	state    TransportState
	expected float64
	observed bool
}

// Observe takes the state and moment at the beginning of a processing
// cycle of n frames and returns the change since the last observation.
func (w *Watcher) Observe(state TransportState, m Moment, n int) Change {
	defer func() {
		w.state = state
		w.observed = true
		w.expected = m.Cursor
		if state == Playing && m.SampleRate > 0 {
			w.expected += float64(n) / m.SampleRate
		}
	}()
	if !w.observed {
		return NoChange
	}
	if change := Classify(w.state, state); change != NoChange {
		return change
	}
	if state == Playing && w.state == Playing && math.Abs(m.Cursor-w.expected) > jumpTolerance {
		return CursorJump
	}
	return NoChange
}
