// Package preset defines the persisted shape of a column: its settings and
// a sparse list of filled slots. Empty slots are omitted.
package preset

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/timeline"
)

// ErrInvalid is returned when preset fails validation.
var ErrInvalid = errors.New("invalid preset")

type (
	// Column is a persisted column.
	Column struct {
		Settings Settings `yaml:"settings"`
		Slots    []Slot   `yaml:"slots,omitempty"`
	}

	// Settings are column defaults.
	Settings struct {
		StartTiming   string  `yaml:"start_timing,omitempty"`
		StopTiming    string  `yaml:"stop_timing,omitempty"`
		TempoAdaption string  `yaml:"tempo_adaption,omitempty"`
		CacheFully    bool    `yaml:"cache_fully,omitempty"`
		Record        *Record `yaml:"record,omitempty"`
	}

	// Record are recording settings of the column.
	Record struct {
		StartTiming string `yaml:"start_timing,omitempty"`
		// Length in bars in "n/d" form. Empty is open end.
		Length    string  `yaml:"length,omitempty"`
		PlayAfter bool    `yaml:"play_after,omitempty"`
		MaxLength float64 `yaml:"max_length,omitempty"`
	}

	// Slot is a filled slot.
	Slot struct {
		Index int  `yaml:"index"`
		Clip  Clip `yaml:"clip"`
	}

	// Clip is a persisted clip.
	Clip struct {
		ID          string            `yaml:"id,omitempty"`
		Name        string            `yaml:"name,omitempty"`
		Source      source.Descriptor `yaml:"source"`
		Looped      bool              `yaml:"looped"`
		Volume      float64           `yaml:"volume,omitempty"`
		Section     *Section          `yaml:"section,omitempty"`
		StartTiming string            `yaml:"start_timing,omitempty"`
		StopTiming  string            `yaml:"stop_timing,omitempty"`
	}

	// Section is the played part of material in frames.
	Section struct {
		Start  int `yaml:"start"`
		Length int `yaml:"length,omitempty"`
	}
)

// Timings parses timing overrides of the clip. Nil is returned for timings
// which aren't overridden.
func (c Clip) Timings() (*timeline.StartTiming, *timeline.StopTiming, error) {
	var (
		start *timeline.StartTiming
		stop  *timeline.StopTiming
	)
	if c.StartTiming != "" {
		t, err := timeline.ParseStartTiming(c.StartTiming)
		if err != nil {
			return nil, nil, err
		}
		start = &t
	}
	if c.StopTiming != "" {
		t, err := timeline.ParseStopTiming(c.StopTiming)
		if err != nil {
			return nil, nil, err
		}
		stop = &t
	}
	return start, stop, nil
}

// Validate checks slot indices and timings.
func (c Column) Validate() error {
	seen := make(map[int]struct{}, len(c.Slots))
	for _, s := range c.Slots {
		if s.Index < 0 {
			return fmt.Errorf("%w: negative slot index %d", ErrInvalid, s.Index)
		}
		if _, ok := seen[s.Index]; ok {
			return fmt.Errorf("%w: duplicate slot index %d", ErrInvalid, s.Index)
		}
		seen[s.Index] = struct{}{}
		if _, _, err := s.Clip.Timings(); err != nil {
			return fmt.Errorf("%w: slot %d: %v", ErrInvalid, s.Index, err)
		}
	}
	return nil
}

// Sort orders slots by index.
func (c *Column) Sort() {
	sort.Slice(c.Slots, func(i, j int) bool {
		return c.Slots[i].Index < c.Slots[j].Index
	})
}

// Marshal encodes column into yaml with slots ordered by index.
func Marshal(c Column) ([]byte, error) {
	c.Slots = append([]Slot(nil), c.Slots...)
	c.Sort()
	return yaml.Marshal(&c)
}

// Unmarshal decodes and validates column.
func Unmarshal(data []byte) (Column, error) {
	var c Column
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Column{}, fmt.Errorf("failed to parse preset: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Column{}, err
	}
	return c, nil
}

// Load reads column from file.
func Load(path string) (Column, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Column{}, fmt.Errorf("failed to read preset: %w", err)
	}
	return Unmarshal(data)
}

// Save writes column into file.
func Save(path string, c Column) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
