package clipengine

import (
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

type (
	// ColumnSettings are defaults of all clips in the column. They're
	// owned by the controller and delivered to the real-time side as an
	// immutable snapshot.
	ColumnSettings struct {
		StartTiming   timeline.StartTiming
		StopTiming    timeline.StopTiming
		TempoAdaption supplier.TempoAdaption
		// CacheFully loads whole material into memory when slot is filled.
		CacheFully bool
		Record     RecordSettings
	}

	// RecordSettings configure recording in the column.
	RecordSettings struct {
		Enabled     bool
		StartTiming timeline.StartTiming
		// Length of normal recordings. Zero value is open end.
		Length timeline.EvenQuantization
		// PlayAfter starts recorded clip right after recording.
		PlayAfter bool
		// MaxLength bounds buffers allocated for one audio recording.
		MaxLength time.Duration
		// MaxEvents bounds buffers allocated for one MIDI recording.
		MaxEvents int
	}

	// ClipSpec describes a clip the slot is filled with.
	ClipSpec struct {
		// ID is generated if zero.
		ID     xid.ID
		Name   string
		Source source.Descriptor
		Looped bool
		// Volume in decibels.
		Volume float64
		Bounds supplier.Bounds
		// Timings override column defaults if not nil.
		StartTiming *timeline.StartTiming
		StopTiming  *timeline.StopTiming
	}

	// RecordBehavior defines what recording does.
	RecordBehavior struct {
		Mode supplier.RecordMode
		// Kind of material recorded in normal mode.
		Kind supplier.Kind
	}
)

// DefaultColumnSettings returns settings with bar quantization.
func DefaultColumnSettings() ColumnSettings {
	return ColumnSettings{
		StartTiming:   timeline.StartQuantized(timeline.Bar),
		StopTiming:    timeline.StopLikeStartTiming,
		TempoAdaption: supplier.TempoIgnore,
		Record: RecordSettings{
			Enabled:     true,
			StartTiming: timeline.StartQuantized(timeline.Bar),
			PlayAfter:   true,
			MaxLength:   time.Minute,
			MaxEvents:   4096,
		},
	}
}

// Validate checks quantizations and recording limits.
func (s ColumnSettings) Validate() error {
	if s.StartTiming.Quantized {
		if err := s.StartTiming.Quantization.Validate(); err != nil {
			return fmt.Errorf("%w: start timing: %v", ErrInvalidSettings, err)
		}
	}
	if s.StopTiming.Mode == timeline.StopOnGrid {
		if err := s.StopTiming.Quantization.Validate(); err != nil {
			return fmt.Errorf("%w: stop timing: %v", ErrInvalidSettings, err)
		}
	}
	r := s.Record
	if !r.Enabled {
		return nil
	}
	if r.StartTiming.Quantized {
		if err := r.StartTiming.Quantization.Validate(); err != nil {
			return fmt.Errorf("%w: record start timing: %v", ErrInvalidSettings, err)
		}
	}
	if r.Length != (timeline.EvenQuantization{}) {
		if err := r.Length.Validate(); err != nil {
			return fmt.Errorf("%w: record length: %v", ErrInvalidSettings, err)
		}
	}
	if r.MaxLength <= 0 || r.MaxEvents <= 0 {
		return fmt.Errorf("%w: record buffers must be positive", ErrInvalidSettings)
	}
	return nil
}

// validate checks timing overrides.
func (s ClipSpec) validate() error {
	if s.StartTiming != nil && s.StartTiming.Quantized {
		if err := s.StartTiming.Quantization.Validate(); err != nil {
			return fmt.Errorf("%w: start timing: %v", ErrInvalidSettings, err)
		}
	}
	if s.StopTiming != nil && s.StopTiming.Mode == timeline.StopOnGrid {
		if err := s.StopTiming.Quantization.Validate(); err != nil {
			return fmt.Errorf("%w: stop timing: %v", ErrInvalidSettings, err)
		}
	}
	return nil
}
