package clipengine

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/dudk/clipengine/supplier"
)

// EventKind identifies the type of event.
type EventKind int

const (
	// PlayStateChanged is emitted when clip changes its state.
	PlayStateChanged EventKind = iota
	// PositionChanged is emitted for advancing clips. It's advisory and
	// might be coalesced.
	PositionChanged
	// RecordingFinished is emitted when recording is done.
	RecordingFinished
	// ErrorOccurred is emitted when command failed.
	ErrorOccurred
)

func (k EventKind) String() string {
	switch k {
	case PlayStateChanged:
		return "play-state-changed"
	case PositionChanged:
		return "position-changed"
	case RecordingFinished:
		return "recording-finished"
	case ErrorOccurred:
		return "error"
	}
	return "unknown"
}

// Event is sent by the real-time side of a column to controller. Fields
// are set according to the kind.
type Event struct {
	Kind   EventKind
	Index  int
	ClipID xid.ID
	// State is set for PlayStateChanged.
	State PlayState
	// Pos is proportional position for PositionChanged.
	Pos float64
	// Outcome is set for RecordingFinished. It references recording
	// buffers.
	Outcome supplier.Outcome
	// Err is set for ErrorOccurred.
	Err error
}

func (e Event) String() string {
	switch e.Kind {
	case PlayStateChanged:
		return fmt.Sprintf("slot %d: %v", e.Index, e.State)
	case PositionChanged:
		return fmt.Sprintf("slot %d: position %.3f", e.Index, e.Pos)
	case RecordingFinished:
		return fmt.Sprintf("slot %d: recorded %d frames of %v", e.Index, e.Outcome.FrameCount, e.Outcome.Kind)
	case ErrorOccurred:
		return fmt.Sprintf("slot %d: %v", e.Index, e.Err)
	}
	return e.Kind.String()
}
