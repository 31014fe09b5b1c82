package clipengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/dudk/clipengine/log"
	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

const (
	// DefaultCapacity of command and event queues.
	DefaultCapacity = 500

	defaultNumChannels = 2
	defaultSampleRate  = 44100
	defaultMaxFrames   = 512

	defaultPollBase = 20 * time.Millisecond
	defaultPollMax  = 320 * time.Millisecond
)

type (
	// Column is a playback channel with ordered slots. Its methods are
	// called from the controller goroutine, except Process, which is
	// called by the host in real-time context. The sides talk through
	// bounded queues only.
	Column struct {
		id          xid.ID
		log         log.Logger
		settings    ColumnSettings
		numChannels int
		sampleRate  float64
		maxFrames   int

		commandCapacity int
		eventCapacity   int
		batch           int
		pollBase        time.Duration
		pollMax         time.Duration

		acquirer     source.Acquirer
		transport    timeline.Transport
		timeline     timeline.Timeline
		metered      bool
		recordingDir string

		commands  chan Command
		events    chan Event
		processor processor

		// controller view of slots.
		infos      map[int]*SlotInfo
		recordings map[int]xid.ID

		mu     sync.Mutex
		host   Host
		handle PlaybackHandle
	}

	// SlotInfo is the controller view of a filled slot. It's reconciled
	// with events during Poll.
	SlotInfo struct {
		Index  int
		ClipID xid.ID
		Spec   ClipSpec
		State  PlayState
		// Pos is the last reported proportional position.
		Pos         float64
		Kind        supplier.Kind
		FrameCount  int
		FrameRate   float64
		NumChannels int
		// Recording is true until the first recording of a fresh clip is
		// finished.
		Recording bool
	}
)

// NewColumn creates a column. It's inactive until activated on a host,
// but Process can be called directly.
func NewColumn(options ...Option) (*Column, error) {
	c := &Column{
		id:              xid.New(),
		log:             log.Silent(),
		settings:        DefaultColumnSettings(),
		numChannels:     defaultNumChannels,
		sampleRate:      defaultSampleRate,
		maxFrames:       defaultMaxFrames,
		commandCapacity: DefaultCapacity,
		eventCapacity:   DefaultCapacity,
		batch:           DefaultCapacity,
		pollBase:        defaultPollBase,
		pollMax:         defaultPollMax,
		infos:           make(map[int]*SlotInfo),
		recordings:      make(map[int]xid.ID),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	if c.acquirer == nil {
		c.acquirer = source.Files{FrameRate: c.sampleRate}
	}
	c.commands = make(chan Command, c.commandCapacity)
	c.events = make(chan Event, c.eventCapacity)
	c.processor = processor{
		slots:     make([]Slot, 0, MaxSlots),
		positions: make([]position, 0, MaxSlots),
		settings:  c.settings,
		maxFrames: c.maxFrames,
		commands:  c.commands,
		events:    c.events,
		batch:     c.batch,
		transport: c.transport,
		timeline:  c.timeline,
		critical:  make([]Event, 0, c.batch+3*MaxSlots),
		meter:     c.newMeter(),
		interval:  newPollInterval(c.pollBase, c.pollMax),
	}
	return c, nil
}

func (c *Column) String() string {
	return "column " + c.id.String()
}

// ID returns id of the column.
func (c *Column) ID() xid.ID {
	return c.id
}

// Settings returns current column settings.
func (c *Column) Settings() ColumnSettings {
	return c.settings
}

// Process is the real-time tick. It must be called from a single
// goroutine.
func (c *Column) Process(args *ProcessArgs) {
	c.processor.process(args)
}

// send never blocks.
func (c *Column) send(cmd Command) error {
	select {
	case c.commands <- cmd:
		return nil
	default:
		c.processor.meter.QueueFull()
		return fmt.Errorf("%w: %T", ErrCommandQueueFull, cmd)
	}
}

func checkIndex(index int) error {
	if index < 0 || index >= MaxSlots {
		return slotError(index, ErrSlotIndexOutOfRange)
	}
	return nil
}

func (c *Column) filled(index int) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	if _, ok := c.infos[index]; ok {
		return nil
	}
	if _, ok := c.recordings[index]; ok {
		return nil
	}
	return slotError(index, ErrSlotEmpty)
}

// FillSlot acquires material of the clip and puts it into the slot.
func (c *Column) FillSlot(index int, spec ClipSpec) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	if err := spec.validate(); err != nil {
		return slotError(index, err)
	}
	src, err := c.acquirer.Acquire(spec.Source)
	if err != nil {
		c.log.Warn(c, ": slot ", index, ": ", err)
		return slotError(index, err)
	}
	return c.fill(index, spec, src)
}

// FillSlotWithSupplier puts a clip of provided material into the slot.
// Tempo is native tempo of material, zero if it has none.
func (c *Column) FillSlotWithSupplier(index int, spec ClipSpec, material supplier.Supplier, tempo float64) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	if err := spec.validate(); err != nil {
		return slotError(index, err)
	}
	return c.fill(index, spec, source.Source{
		Descriptor: spec.Source,
		Material:   material,
		Tempo:      tempo,
	})
}

func (c *Column) fill(index int, spec ClipSpec, src source.Source) error {
	if spec.ID.IsNil() {
		spec.ID = xid.New()
	}
	clip := NewClip(src, spec)
	if c.settings.CacheFully {
		clip.chain.Cache.Load()
	}
	clip.Prepare(c.numChannels, c.maxFrames)
	if err := c.send(FillSlot{Index: index, Clip: clip}); err != nil {
		return slotError(index, err)
	}
	delete(c.recordings, index)
	c.infos[index] = &SlotInfo{
		Index:       index,
		ClipID:      spec.ID,
		Spec:        spec,
		Kind:        src.Material.Kind(),
		FrameCount:  src.Material.FrameCount(),
		FrameRate:   src.Material.FrameRate(),
		NumChannels: src.Material.NumChannels(),
	}
	c.log.Debug(c, ": slot ", index, ": filled with ", spec.Source)
	return nil
}

// ClearSlot removes the clip from the slot.
func (c *Column) ClearSlot(index int) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	if err := c.send(ClearSlot{Index: index}); err != nil {
		return slotError(index, err)
	}
	delete(c.infos, index)
	delete(c.recordings, index)
	return nil
}

// PlayClip plays the clip of the slot. Nil timing resolves to clip or
// column default.
func (c *Column) PlayClip(index int, timing *timeline.StartTiming) error {
	if err := c.filled(index); err != nil {
		return err
	}
	return slotError(index, c.send(PlayClip{Index: index, Timing: timing}))
}

// StopClip stops the clip of the slot. Nil timing resolves to clip or
// column default.
func (c *Column) StopClip(index int, timing *timeline.StopTiming) error {
	if err := c.filled(index); err != nil {
		return err
	}
	return slotError(index, c.send(StopClip{Index: index, Timing: timing}))
}

// PauseClip pauses the clip of the slot.
func (c *Column) PauseClip(index int) error {
	if err := c.filled(index); err != nil {
		return err
	}
	return slotError(index, c.send(PauseClip{Index: index}))
}

// SeekClip moves the clip to proportional position in [0, 1).
func (c *Column) SeekClip(index int, pos float64) error {
	if err := c.filled(index); err != nil {
		return err
	}
	return slotError(index, c.send(SeekClip{Index: index, Pos: pos}))
}

// SetClipVolume sets volume of the clip in decibels.
func (c *Column) SetClipVolume(index int, db float64) error {
	if err := c.filled(index); err != nil {
		return err
	}
	if err := c.send(SetClipVolume{Index: index, Volume: db}); err != nil {
		return slotError(index, err)
	}
	if info, ok := c.infos[index]; ok {
		info.Spec.Volume = db
	}
	return nil
}

// SetClipLooped switches looping of the clip.
func (c *Column) SetClipLooped(index int, looped bool) error {
	if err := c.filled(index); err != nil {
		return err
	}
	if err := c.send(SetClipLooped{Index: index, Looped: looped}); err != nil {
		return slotError(index, err)
	}
	if info, ok := c.infos[index]; ok {
		info.Spec.Looped = looped
	}
	return nil
}

// StartRecording records into the slot. Buffers are allocated here, so the
// real-time side doesn't allocate while recording.
func (c *Column) StartRecording(index int, behavior RecordBehavior) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	r := c.settings.Record
	if !r.Enabled {
		return slotError(index, ErrNotRecordable)
	}
	info, filled := c.infos[index]
	if _, ok := c.recordings[index]; ok && !filled {
		return slotError(index, supplier.ErrRecording)
	}
	kind := behavior.Kind
	switch {
	case behavior.Mode != supplier.RecordNormal && !filled:
		return slotError(index, ErrNotRecordable)
	case behavior.Mode != supplier.RecordNormal:
		if info.Kind != supplier.Midi {
			return slotError(index, ErrNotRecordable)
		}
		kind = supplier.Midi
	}
	cmd := StartRecording{
		Index:    index,
		Behavior: behavior,
		Buffers:  supplier.NewBuffers(kind, c.numChannels, c.sampleRate, signal.FramesOf(c.sampleRate, r.MaxLength), r.MaxEvents),
	}
	if !filled {
		cmd.Clip = newClip(xid.New(), nil)
		cmd.Clip.Prepare(c.numChannels, c.maxFrames)
	}
	if err := c.send(cmd); err != nil {
		return slotError(index, err)
	}
	if cmd.Clip != nil {
		c.recordings[index] = cmd.Clip.id
	}
	c.log.Debug(c, ": slot ", index, ": ", behavior.Mode, " recording of ", kind)
	return nil
}

// ProcessTransportChange reconciles all clips with the transport change.
// It's only needed if column doesn't observe transport itself.
func (c *Column) ProcessTransportChange(change timeline.Change, m timeline.Moment) error {
	return c.send(ProcessTransportChange{Change: change, Moment: m})
}

// UpdateSettings validates settings and delivers them to the real-time
// side.
func (c *Column) UpdateSettings(s ColumnSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := c.send(UpdateSettings{Settings: s}); err != nil {
		return err
	}
	c.settings = s
	return nil
}

// PollInterval returns the interval Poll should be called with. It widens
// while real-time side can't deliver all events.
func (c *Column) PollInterval() time.Duration {
	return c.processor.interval.get()
}

// Slot returns the controller view of the slot.
func (c *Column) Slot(index int) (SlotInfo, bool) {
	info, ok := c.infos[index]
	if !ok {
		return SlotInfo{}, false
	}
	return *info, true
}

// Poll receives pending events and reconciles slot views with them.
func (c *Column) Poll() []Event {
	var events []Event
	for i := 0; i < cap(c.events); i++ {
		select {
		case e := <-c.events:
			c.reconcile(&e)
			events = append(events, e)
		default:
			return events
		}
	}
	return events
}

func (c *Column) reconcile(e *Event) {
	info := c.infos[e.Index]
	switch e.Kind {
	case PositionChanged:
		if info != nil && info.ClipID == e.ClipID {
			info.Pos = e.Pos
		}
		return
	case ErrorOccurred:
		c.log.Warn(c, ": ", e)
		if info == nil {
			delete(c.recordings, e.Index)
		}
		return
	case PlayStateChanged:
		switch {
		case e.ClipID.IsNil():
			// fresh clip was dropped by cancelled recording.
			if info != nil && info.Recording {
				delete(c.infos, e.Index)
				delete(c.recordings, e.Index)
			}
		case info == nil && c.recordings[e.Index] == e.ClipID:
			c.infos[e.Index] = &SlotInfo{
				Index:       e.Index,
				ClipID:      e.ClipID,
				Spec:        ClipSpec{ID: e.ClipID, Looped: true},
				State:       e.State,
				FrameRate:   c.sampleRate,
				NumChannels: c.numChannels,
				Recording:   true,
			}
		case info != nil && info.ClipID == e.ClipID:
			info.State = e.State
		}
	case RecordingFinished:
		c.finishRecording(e, info)
	}
	c.log.Debug(c, ": ", e)
}

// finishRecording updates the view with recorded material.
func (c *Column) finishRecording(e *Event, info *SlotInfo) {
	if info == nil || info.ClipID != e.ClipID {
		return
	}
	delete(c.recordings, e.Index)
	info.Recording = false
	if e.Outcome.Dropped > 0 {
		c.log.Warn(c, ": slot ", e.Index, ": recording dropped ", e.Outcome.Dropped, " frames or events")
	}
	material := e.Outcome.Material()
	info.Kind = material.Kind()
	info.FrameCount = material.FrameCount()
	info.FrameRate = material.FrameRate()
	info.NumChannels = material.NumChannels()

	if e.Outcome.Mode == supplier.RecordNormal {
		info.Spec.Bounds = supplier.Bounds{}
		info.Spec.Looped = true
	}
	info.Spec.Source = source.Descriptor{}

	var tempo float64
	if c.timeline != nil {
		tempo = c.timeline.CurrentMoment().Tempo
	}
	if c.recordingDir != "" {
		d, err := source.Save(c.recordingDir, e.ClipID.String(), material, tempo)
		if err == nil {
			info.Spec.Source = d
			return
		}
		c.log.Warn(c, ": slot ", e.Index, ": ", err)
	}
	if m, ok := material.(*supplier.MidiMaterial); ok {
		info.Spec.Source = source.Inline(m.Events(), m.FrameCount(), m.FrameRate())
		info.Spec.Source.Tempo = tempo
	}
}
