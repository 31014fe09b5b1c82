// Package source resolves descriptors of clip material into suppliers.
// Everything here reads or writes files and allocates, so it's used only
// in the controller context before a clip reaches the real-time side.
package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine/supplier"
)

// ErrUnavailable is returned when material can't be acquired.
var ErrUnavailable = errors.New("source unavailable")

type (
	// Descriptor references clip material. It's either a path to a wav or
	// a standard MIDI file, or inline MIDI events.
	Descriptor struct {
		Path string `yaml:"path,omitempty"`
		// Inline MIDI material.
		Events     []InlineEvent `yaml:"events,omitempty"`
		FrameCount int           `yaml:"frames,omitempty"`
		FrameRate  float64       `yaml:"rate,omitempty"`
		// Tempo overrides native tempo of material.
		Tempo float64 `yaml:"tempo,omitempty"`
	}

	// InlineEvent is a MIDI message at material frame.
	InlineEvent struct {
		Frame   int    `yaml:"frame"`
		Message []byte `yaml:"message"`
	}

	// Source is acquired material.
	Source struct {
		Descriptor Descriptor
		Material   supplier.Supplier
		// Tempo is native tempo of material in beats per minute. Zero if
		// material has no tempo.
		Tempo float64
	}

	// Acquirer resolves descriptors into material.
	Acquirer interface {
		Acquire(Descriptor) (Source, error)
	}

	// AcquirerFunc is a function which implements Acquirer.
	AcquirerFunc func(Descriptor) (Source, error)

	// Files acquires material from wav and standard MIDI files, or builds
	// it from inline events.
	Files struct {
		// Dir resolves relative paths.
		Dir string
		// FrameRate of MIDI material read from files.
		FrameRate float64
	}
)

// Acquire implements Acquirer.
func (fn AcquirerFunc) Acquire(d Descriptor) (Source, error) {
	return fn(d)
}

// Inline returns a descriptor of inline MIDI material.
func Inline(events []supplier.Event, frameCount int, frameRate float64) Descriptor {
	d := Descriptor{
		Events:     make([]InlineEvent, 0, len(events)),
		FrameCount: frameCount,
		FrameRate:  frameRate,
	}
	for _, e := range events {
		d.Events = append(d.Events, InlineEvent{
			Frame:   e.Frame,
			Message: append([]byte(nil), e.Message...),
		})
	}
	return d
}

// IsInline returns true if descriptor carries material itself.
func (d Descriptor) IsInline() bool {
	return d.Path == ""
}

func (d Descriptor) String() string {
	if d.IsInline() {
		return fmt.Sprintf("inline(%d events, %d frames)", len(d.Events), d.FrameCount)
	}
	return d.Path
}

// Acquire implements Acquirer.
func (f Files) Acquire(d Descriptor) (Source, error) {
	if d.IsInline() {
		return inline(d)
	}
	path := d.Path
	if !filepath.IsAbs(path) && f.Dir != "" {
		path = filepath.Join(f.Dir, path)
	}
	s := Source{Descriptor: d}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		m, err := ReadWAV(path)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, d.Path, err)
		}
		s.Material = m
	case ".mid", ".midi", ".smf":
		m, tempo, err := ReadSMF(path, f.frameRate())
		if err != nil {
			return Source{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, d.Path, err)
		}
		s.Material = m
		s.Tempo = tempo
	default:
		return Source{}, fmt.Errorf("%w: %s: unsupported format", ErrUnavailable, d.Path)
	}
	if d.Tempo > 0 {
		s.Tempo = d.Tempo
	}
	return s, nil
}

func (f Files) frameRate() float64 {
	if f.FrameRate > 0 {
		return f.FrameRate
	}
	return DefaultFrameRate
}

// DefaultFrameRate is used for MIDI material if rate isn't set.
const DefaultFrameRate = 48000

func inline(d Descriptor) (Source, error) {
	if d.FrameCount <= 0 {
		return Source{}, fmt.Errorf("%w: inline material without frames", ErrUnavailable)
	}
	rate := d.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	events := make([]supplier.Event, 0, len(d.Events))
	for _, e := range d.Events {
		events = append(events, supplier.Event{
			Frame:   e.Frame,
			Message: midi.Message(e.Message),
		})
	}
	return Source{
		Descriptor: d,
		Material:   supplier.NewMidiMaterial(events, d.FrameCount, rate),
		Tempo:      d.Tempo,
	}, nil
}
