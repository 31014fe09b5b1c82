package clipengine

import (
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dudk/clipengine/preset"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

// Save returns the persisted shape of the column. Clips without
// persistable material are skipped.
func (c *Column) Save() preset.Column {
	p := preset.Column{Settings: presetSettings(c.settings)}
	for index, info := range c.infos {
		if info.Recording || (info.Spec.Source.IsInline() && info.Spec.Source.FrameCount == 0) {
			c.log.Warn(c, ": slot ", index, ": material can't be saved")
			continue
		}
		p.Slots = append(p.Slots, preset.Slot{Index: index, Clip: presetClip(info.Spec)})
	}
	p.Sort()
	return p
}

// Load replaces settings and slots of the column with the preset. Slots
// which can't be filled are left empty and their errors are returned.
func (c *Column) Load(p preset.Column) error {
	if err := p.Validate(); err != nil {
		return err
	}
	settings, err := columnSettings(p.Settings, c.settings)
	if err != nil {
		return err
	}
	if err := c.UpdateSettings(settings); err != nil {
		return err
	}
	loaded := make(map[int]struct{}, len(p.Slots))
	var errs slotErrors
	for _, s := range p.Slots {
		spec, err := clipSpec(s.Clip)
		if err != nil {
			errs = append(errs, slotError(s.Index, err))
			continue
		}
		if err := c.FillSlot(s.Index, spec); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded[s.Index] = struct{}{}
	}
	for index := range c.infos {
		if _, ok := loaded[index]; ok {
			continue
		}
		if err := c.ClearSlot(index); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ret()
}

func presetSettings(s ColumnSettings) preset.Settings {
	p := preset.Settings{
		StartTiming:   s.StartTiming.String(),
		StopTiming:    s.StopTiming.String(),
		TempoAdaption: s.TempoAdaption.String(),
		CacheFully:    s.CacheFully,
	}
	if s.Record.Enabled {
		p.Record = &preset.Record{
			StartTiming: s.Record.StartTiming.String(),
			PlayAfter:   s.Record.PlayAfter,
			MaxLength:   s.Record.MaxLength.Seconds(),
		}
		if s.Record.Length != (timeline.EvenQuantization{}) {
			p.Record.Length = s.Record.Length.String()
		}
	}
	return p
}

// columnSettings parses persisted settings. Missing values are taken
// from defaults.
func columnSettings(p preset.Settings, defaults ColumnSettings) (ColumnSettings, error) {
	s := defaults
	var err error
	if p.StartTiming != "" {
		if s.StartTiming, err = timeline.ParseStartTiming(p.StartTiming); err != nil {
			return ColumnSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	if p.StopTiming != "" {
		if s.StopTiming, err = timeline.ParseStopTiming(p.StopTiming); err != nil {
			return ColumnSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	if s.TempoAdaption, err = supplier.ParseTempoAdaption(p.TempoAdaption); err != nil {
		return ColumnSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.CacheFully = p.CacheFully
	s.Record.Enabled = p.Record != nil
	if r := p.Record; r != nil {
		if r.StartTiming != "" {
			if s.Record.StartTiming, err = timeline.ParseStartTiming(r.StartTiming); err != nil {
				return ColumnSettings{}, fmt.Errorf("%w: record: %v", ErrInvalidSettings, err)
			}
		}
		s.Record.Length = timeline.EvenQuantization{}
		if r.Length != "" {
			if s.Record.Length, err = timeline.ParseQuantization(r.Length); err != nil {
				return ColumnSettings{}, fmt.Errorf("%w: record: %v", ErrInvalidSettings, err)
			}
		}
		s.Record.PlayAfter = r.PlayAfter
		d := DefaultColumnSettings().Record
		if r.MaxLength > 0 {
			s.Record.MaxLength = time.Duration(r.MaxLength * float64(time.Second))
		} else if s.Record.MaxLength <= 0 {
			s.Record.MaxLength = d.MaxLength
		}
		if s.Record.MaxEvents <= 0 {
			s.Record.MaxEvents = d.MaxEvents
		}
	}
	return s, s.Validate()
}

func presetClip(spec ClipSpec) preset.Clip {
	p := preset.Clip{
		ID:     spec.ID.String(),
		Name:   spec.Name,
		Source: spec.Source,
		Looped: spec.Looped,
		Volume: spec.Volume,
	}
	if !spec.Bounds.IsDefault() {
		p.Section = &preset.Section{Start: spec.Bounds.Start, Length: spec.Bounds.Length}
	}
	if spec.StartTiming != nil {
		p.StartTiming = spec.StartTiming.String()
	}
	if spec.StopTiming != nil {
		p.StopTiming = spec.StopTiming.String()
	}
	return p
}

func clipSpec(p preset.Clip) (ClipSpec, error) {
	spec := ClipSpec{
		Name:   p.Name,
		Source: p.Source,
		Looped: p.Looped,
		Volume: p.Volume,
	}
	if p.ID != "" {
		id, err := xid.FromString(p.ID)
		if err != nil {
			return ClipSpec{}, fmt.Errorf("%w: clip id: %v", ErrInvalidSettings, err)
		}
		spec.ID = id
	}
	if p.Section != nil {
		spec.Bounds = supplier.Bounds{Start: p.Section.Start, Length: p.Section.Length}
	}
	start, stop, err := p.Timings()
	if err != nil {
		return ClipSpec{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	spec.StartTiming = start
	spec.StopTiming = stop
	return spec, nil
}
