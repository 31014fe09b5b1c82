package clipengine

import (
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

// Command is sent by controller to the real-time side of a column. It's
// one of the types declared in this file.
type Command interface {
	command()
}

type (
	// FillSlot replaces the clip of the slot. Clip must be prepared.
	FillSlot struct {
		Index int
		Clip  *Clip
	}

	// ClearSlot removes the clip of the slot.
	ClearSlot struct {
		Index int
	}

	// PlayClip plays the clip. Nil timing resolves to clip or column
	// default.
	PlayClip struct {
		Index  int
		Timing *timeline.StartTiming
	}

	// StopClip stops the clip. Nil timing resolves to clip or column
	// default.
	StopClip struct {
		Index  int
		Timing *timeline.StopTiming
	}

	// PauseClip pauses the clip.
	PauseClip struct {
		Index int
	}

	// SeekClip moves the clip to proportional position.
	SeekClip struct {
		Index int
		Pos   float64
	}

	// SetClipVolume sets volume of the clip in decibels.
	SetClipVolume struct {
		Index  int
		Volume float64
	}

	// SetClipLooped switches looping of the clip.
	SetClipLooped struct {
		Index  int
		Looped bool
	}

	// StartRecording records into the slot. Clip is a prepared empty clip
	// used if slot is empty.
	StartRecording struct {
		Index    int
		Behavior RecordBehavior
		Buffers  *supplier.Buffers
		Clip     *Clip
	}

	// ProcessTransportChange reconciles all clips with transport change.
	ProcessTransportChange struct {
		Change timeline.Change
		Moment timeline.Moment
	}

	// UpdateSettings delivers new column settings.
	UpdateSettings struct {
		Settings ColumnSettings
	}
)

func (FillSlot) command()               {}
func (ClearSlot) command()              {}
func (PlayClip) command()               {}
func (StopClip) command()               {}
func (PauseClip) command()              {}
func (SeekClip) command()               {}
func (SetClipVolume) command()          {}
func (SetClipLooped) command()          {}
func (StartRecording) command()         {}
func (ProcessTransportChange) command() {}
func (UpdateSettings) command()         {}
