package clipengine

import (
	"errors"

	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

// Slot is a playback bay of the column which holds at most one clip. It
// reconciles its clip with transport changes.
type Slot struct {
	index int
	clip  *Clip

	lastState PlayState
	lastPlay  struct {
		valid        bool
		syncedToGrid bool
	}
	stoppedByTransport bool
}

// Index returns row of the slot.
func (s *Slot) Index() int {
	return s.index
}

// Clip returns the clip or nil if slot is empty.
func (s *Slot) Clip() *Clip {
	return s.clip
}

// IsEmpty returns true if slot has no clip.
func (s *Slot) IsEmpty() bool {
	return s.clip == nil
}

// Fill replaces the clip. Returns replaced clip.
func (s *Slot) Fill(c *Clip) *Clip {
	old := s.clip
	s.clip = c
	s.lastPlay.valid = false
	s.stoppedByTransport = false
	return old
}

// Clear removes the clip. Returns removed clip.
func (s *Slot) Clear() *Clip {
	return s.Fill(nil)
}

func (s *Slot) get() (*Clip, error) {
	if s.clip == nil {
		return nil, ErrSlotEmpty
	}
	return s.clip, nil
}

// PlayClip plays the clip. Nil timing resolves to clip or column default.
func (s *Slot) PlayClip(m timeline.Moment, timing *timeline.StartTiming, settings *ColumnSettings) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	t := c.resolveStart(timing, settings)
	s.lastPlay.valid = true
	s.lastPlay.syncedToGrid = t.Quantized
	c.Play(m, t)
	return nil
}

// StopClip stops the clip. Nil timing resolves to clip or column default.
func (s *Slot) StopClip(m timeline.Moment, timing *timeline.StopTiming, settings *ColumnSettings) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	s.stoppedByTransport = false
	c.Stop(m, c.resolveStop(timing, settings))
	if c.isEmpty() {
		s.Clear()
	}
	return nil
}

// PauseClip pauses the clip.
func (s *Slot) PauseClip() error {
	c, err := s.get()
	if err != nil {
		return err
	}
	c.Pause()
	return nil
}

// SeekClip moves clip to proportional position.
func (s *Slot) SeekClip(pos float64) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	c.Seek(pos)
	return nil
}

// SetClipVolume sets volume of the clip in decibels.
func (s *Slot) SetClipVolume(db float64) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	c.SetVolume(db)
	return nil
}

// SetClipLooped switches looping of the clip.
func (s *Slot) SetClipLooped(looped bool) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	c.SetLooped(looped)
	return nil
}

// RecordClip starts recording. Empty slot is filled with the fresh clip,
// which must be prepared.
func (s *Slot) RecordClip(m timeline.Moment, behavior RecordBehavior, buf *supplier.Buffers, fresh *Clip, settings *ColumnSettings) error {
	if !settings.Record.Enabled {
		return ErrNotRecordable
	}
	c := s.clip
	if c == nil {
		if behavior.Mode != supplier.RecordNormal || fresh == nil {
			return ErrNotRecordable
		}
		c = fresh
		c.SetTempoAdaption(settings.TempoAdaption)
	}
	if err := c.Record(m, behavior, buf, settings.Record); err != nil {
		if errors.Is(err, supplier.ErrNotMidi) {
			return ErrNotRecordable
		}
		return err
	}
	if s.clip == nil {
		s.Fill(c)
	}
	s.stoppedByTransport = false
	return nil
}

// ProcessTransportChange reconciles the clip with the transport change.
func (s *Slot) ProcessTransportChange(change timeline.Change, m timeline.Moment) {
	c := s.clip
	if c == nil || !s.lastPlay.valid {
		return
	}
	state := c.PlayState()
	switch change {
	case timeline.PlayAfterStop:
		if state == Stopped && s.stoppedByTransport {
			s.stoppedByTransport = false
			c.Play(m, timeline.StartQuantized(timeline.Bar))
			return
		}
		s.stopByTransport(m, false)
	case timeline.StopAfterPlay:
		switch state {
		case ScheduledForPlay, Playing, ScheduledForStop:
			s.stopByTransport(m, s.lastPlay.syncedToGrid)
		default:
			s.stopByTransport(m, false)
		}
	case timeline.StopAfterPause:
		s.stopByTransport(m, false)
	case timeline.CursorJump:
		if s.lastPlay.syncedToGrid {
			c.resync(m, timeline.Bar)
		}
	}
}

// stopByTransport stops the clip immediately. Memorized stop makes the
// clip start again with transport.
func (s *Slot) stopByTransport(m timeline.Moment, memorize bool) {
	s.stoppedByTransport = memorize
	switch s.clip.PlayState() {
	case ScheduledForRecord, Recording:
		return
	}
	s.clip.Stop(m, timeline.StopImmediately)
}

// Process advances the clip by one block.
func (s *Slot) Process(args *ProcessArgs) {
	if s.clip != nil {
		s.clip.Process(args)
	}
}

// changed returns current state if it differs from the last reported.
func (s *Slot) changed() (PlayState, bool) {
	state := Stopped
	if s.clip != nil {
		state = s.clip.PlayState()
	}
	if state == s.lastState {
		return state, false
	}
	s.lastState = state
	return state, true
}

func (c *Clip) resolveStart(timing *timeline.StartTiming, settings *ColumnSettings) timeline.StartTiming {
	switch {
	case timing != nil:
		return *timing
	case c.startTiming != nil:
		return *c.startTiming
	}
	return settings.StartTiming
}

func (c *Clip) resolveStop(timing *timeline.StopTiming, settings *ColumnSettings) timeline.StopTiming {
	stop := settings.StopTiming
	if c.stopTiming != nil {
		stop = *c.stopTiming
	}
	if timing != nil {
		stop = *timing
	}
	start := c.resolveStart(nil, settings)
	if c.state == ScheduledForRecord || c.state == Recording {
		start = settings.Record.StartTiming
	}
	return stop.Resolve(start)
}
