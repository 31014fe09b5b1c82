package clipengine

import (
	"github.com/rs/xid"
	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

// PlayState is the state of a clip.
type PlayState int

const (
	// Stopped clip is silent at position zero.
	Stopped PlayState = iota
	// ScheduledForPlay clip waits for a quantized start.
	ScheduledForPlay
	// Playing clip advances.
	Playing
	// ScheduledForStop clip advances until a quantized stop or the end of
	// the current cycle.
	ScheduledForStop
	// Paused clip is silent and keeps its position.
	Paused
	// ScheduledForRecord clip waits for a quantized record start.
	ScheduledForRecord
	// Recording clip captures input.
	Recording
)

func (s PlayState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case ScheduledForPlay:
		return "scheduled-for-play"
	case Playing:
		return "playing"
	case ScheduledForStop:
		return "scheduled-for-stop"
	case Paused:
		return "paused"
	case ScheduledForRecord:
		return "scheduled-for-record"
	case Recording:
		return "recording"
	}
	return "unknown"
}

// IsAdvancing returns true if position of the clip moves in this state.
func (s PlayState) IsAdvancing() bool {
	return s == Playing || s == ScheduledForStop || s == Recording
}

// maxChannels bounds the number of channels of views.
const maxChannels = 16

// allNotesOff are sent when MIDI clip stops.
var allNotesOff = func() (msgs [16]midi.Message) {
	for ch := range msgs {
		msgs[ch] = midi.ControlChange(uint8(ch), 123, 0)
	}
	return
}()

type (
	// Clip is material with its supplier chain and play state. Once a clip
	// is handed to a column, it's owned by the real-time side.
	Clip struct {
		id    xid.ID
		chain *supplier.Chain
		// native tempo of material, zero if it has none.
		tempo     float64
		tempoMode supplier.TempoAdaption

		startTiming *timeline.StartTiming
		stopTiming  *timeline.StopTiming

		state  PlayState
		pos    int
		looped bool

		// timeline positions in seconds.
		startAt     float64
		stopAt      float64
		retriggerAt float64
		// grid of the pending stop.
		stopGrid timeline.EvenQuantization

		pendingStart bool
		stopOnGrid   bool
		stopAtEnd    bool
		retrigger    bool

		rec      recording
		outcome  supplier.Outcome
		finished bool

		silencePending bool
		silenceFrame   int

		scratch signal.Float64
		src     signal.Float64
		dst     signal.Float64
		sink    offsetSink
	}

	recording struct {
		mode      supplier.RecordMode
		kind      supplier.Kind
		playAfter bool
		startAt   float64
		stopAt    float64
		hasStop   bool
	}

	// offsetSink shifts events of a supply into the block.
	offsetSink struct {
		target supplier.EventSink
		offset int
	}
)

func (s *offsetSink) AddEvent(frame int, msg midi.Message) {
	if s.target != nil {
		s.target.AddEvent(frame+s.offset, msg)
	}
}

// NewClip creates a clip of acquired material. Clip must be prepared
// before it's processed.
func NewClip(src source.Source, spec ClipSpec) *Clip {
	id := spec.ID
	if id.IsNil() {
		id = xid.New()
	}
	c := newClip(id, src.Material)
	c.tempo = src.Tempo
	c.startTiming = spec.StartTiming
	c.stopTiming = spec.StopTiming
	c.looped = spec.Looped
	c.chain.SetLooped(spec.Looped)
	c.chain.SetBounds(spec.Bounds)
	c.chain.Amplifier.SetVolume(spec.Volume)
	return c
}

func newClip(id xid.ID, material supplier.Supplier) *Clip {
	c := &Clip{
		id:    id,
		chain: supplier.NewChain(material),
		src:   make(signal.Float64, 0, maxChannels),
		dst:   make(signal.Float64, 0, maxChannels),
	}
	c.chain.SetLooped(false)
	return c
}

// Prepare allocates buffers for blocks up to maxFrames.
func (c *Clip) Prepare(numChannels, maxFrames int) {
	c.scratch = signal.EmptyFloat64(numChannels, maxFrames)
	c.chain.Prepare(numChannels, maxFrames)
}

// ID returns clip id.
func (c *Clip) ID() xid.ID {
	return c.id
}

// PlayState returns current state.
func (c *Clip) PlayState() PlayState {
	return c.state
}

// Looped returns true if clip repeats.
func (c *Clip) Looped() bool {
	return c.looped
}

// Volume returns volume in decibels.
func (c *Clip) Volume() float64 {
	return c.chain.Amplifier.Volume()
}

// Chain returns supplier chain of the clip.
func (c *Clip) Chain() *supplier.Chain {
	return c.chain
}

// FrameCount returns length of one cycle.
func (c *Clip) FrameCount() int {
	return c.chain.Head().FrameCount()
}

// Position returns current frame. It keeps growing across cycles.
func (c *Clip) Position() int {
	return c.pos
}

// ProportionalPos returns position within the current cycle in [0, 1).
func (c *Clip) ProportionalPos() float64 {
	count := c.FrameCount()
	if count == 0 {
		return 0
	}
	return float64(c.pos%count) / float64(count)
}

// SetTempoAdaption sets how clip follows timeline tempo.
func (c *Clip) SetTempoAdaption(mode supplier.TempoAdaption) {
	c.tempoMode = mode
}

func (c *Clip) isMidi() bool {
	return c.chain.Head().Kind() == supplier.Midi
}

// Play starts the clip. Playing clip is retriggered.
func (c *Clip) Play(m timeline.Moment, timing timeline.StartTiming) {
	switch c.state {
	case Stopped, Paused, ScheduledForPlay:
		if c.state == Stopped {
			c.pos = 0
		}
		c.clearStop()
		c.restoreLoop()
		c.schedule(m, timing)
	case Playing:
		if timing.Quantized {
			c.retrigger = true
			c.retriggerAt = m.NextBoundary(timing.Quantization)
			return
		}
		c.retrigger = false
		c.rewind()
	case ScheduledForStop:
		c.clearStop()
		c.restoreLoop()
		if c.pendingStart {
			c.state = ScheduledForPlay
		} else {
			c.state = Playing
		}
	}
}

func (c *Clip) schedule(m timeline.Moment, timing timeline.StartTiming) {
	if timing.Quantized {
		c.startAt = m.NextBoundary(timing.Quantization)
		c.pendingStart = true
		c.state = ScheduledForPlay
		return
	}
	c.pendingStart = false
	c.state = Playing
}

// Stop stops the clip. Timing must be resolved.
func (c *Clip) Stop(m timeline.Moment, timing timeline.StopTiming) {
	switch c.state {
	case Paused:
		c.halt(0)
	case ScheduledForPlay:
		if timing.Mode != timeline.StopOnGrid {
			c.halt(0)
			return
		}
		at := m.NextBoundary(timing.Quantization)
		if at <= c.startAt {
			c.halt(0)
			return
		}
		c.scheduleStop(at, timing.Quantization)
	case Playing:
		switch timing.Mode {
		case timeline.StopOnGrid:
			c.scheduleStop(m.NextBoundary(timing.Quantization), timing.Quantization)
		case timeline.StopAtEndOfClip:
			c.retrigger = false
			c.stopAtEnd = true
			c.state = ScheduledForStop
			c.chain.Looper.SetLoopBehavior(supplier.UntilEndOfCycle(c.chain.Looper.CycleAt(c.pos)))
		default:
			c.halt(0)
		}
	case ScheduledForStop:
		if timing.Mode == timeline.StopNow {
			c.halt(0)
		}
	case ScheduledForRecord, Recording:
		c.stopRecording(m, timing)
	}
}

func (c *Clip) scheduleStop(at float64, grid timeline.EvenQuantization) {
	c.retrigger = false
	c.stopOnGrid = true
	c.stopAt = at
	c.stopGrid = grid
	c.state = ScheduledForStop
}

func (c *Clip) clearStop() {
	c.stopOnGrid = false
	c.stopAtEnd = false
}

// Pause keeps position of playing clip. Clip which already started
// within the block of its scheduled start is playing too.
func (c *Clip) Pause() {
	switch {
	case c.state == Playing, c.state == ScheduledForStop:
	case c.state == ScheduledForPlay && !c.pendingStart:
	default:
		return
	}
	c.clearStop()
	c.retrigger = false
	c.state = Paused
	c.silence(0)
}

// resync realigns the clip with the timeline after the cursor jumped.
// Scheduled transitions move to the next boundary of their grid, pending
// stop is kept.
func (c *Clip) resync(m timeline.Moment, grid timeline.EvenQuantization) {
	switch c.state {
	case ScheduledForPlay, Playing:
		c.Play(m, timeline.StartQuantized(grid))
	case ScheduledForStop:
		if c.pendingStart {
			c.startAt = m.NextBoundary(grid)
		}
		if !c.stopOnGrid {
			return
		}
		c.stopAt = m.NextBoundary(c.stopGrid)
		if c.pendingStart && c.stopAt <= c.startAt {
			c.halt(0)
		}
	}
}

// Seek moves position to the proportional position within the current
// cycle. Stopped and recording clips ignore it.
func (c *Clip) Seek(pos float64) {
	switch c.state {
	case Stopped, ScheduledForRecord, Recording:
		return
	}
	count := c.FrameCount()
	if count == 0 {
		return
	}
	if pos < 0 {
		pos = 0
	}
	frame := int(pos * float64(count))
	if frame >= count {
		frame = count - 1
	}
	c.pos = c.chain.Looper.CycleAt(c.pos)*count + frame
}

// SetVolume sets volume in decibels.
func (c *Clip) SetVolume(db float64) {
	c.chain.Amplifier.SetVolume(db)
}

// SetLooped switches looping. Clip which stops at the end of cycle keeps
// doing so.
func (c *Clip) SetLooped(looped bool) {
	c.looped = looped
	if c.stopAtEnd || c.state == ScheduledForRecord {
		return
	}
	c.restoreLoop()
}

// restoreLoop sets loop behavior for the current position. Clip which is
// not looped plays until the end of its current cycle.
func (c *Clip) restoreLoop() {
	c.chain.SetLooped(c.looped)
	if !c.looped {
		c.chain.Looper.SetLoopBehavior(supplier.UntilEndOfCycle(c.chain.Looper.CycleAt(c.pos)))
	}
}

// rewind starts over from the beginning.
func (c *Clip) rewind() {
	c.pos = 0
	c.restoreLoop()
	c.silence(0)
}

// halt stops the clip and rewinds it. Frame is the block frame of MIDI
// silence.
func (c *Clip) halt(frame int) {
	c.state = Stopped
	c.pos = 0
	c.pendingStart = false
	c.retrigger = false
	c.clearStop()
	c.restoreLoop()
	c.silence(frame)
}

func (c *Clip) silence(frame int) {
	if c.isMidi() {
		c.silencePending = true
		c.silenceFrame = frame
	}
}

// Record starts recording into buffers. Normal recording replaces
// material, overdub and replace recordings keep playing.
func (c *Clip) Record(m timeline.Moment, behavior RecordBehavior, buf *supplier.Buffers, settings RecordSettings) error {
	if c.state == ScheduledForRecord || c.state == Recording {
		return supplier.ErrRecording
	}
	if err := c.chain.Recorder.Start(behavior.Mode, buf); err != nil {
		return err
	}
	c.chain.Cache.Unload()
	c.rec = recording{
		mode:      behavior.Mode,
		kind:      buf.Kind(),
		playAfter: settings.PlayAfter,
	}
	c.retrigger = false
	c.clearStop()
	if behavior.Mode != supplier.RecordNormal {
		if c.state == Stopped {
			c.pos = 0
		}
		c.pendingStart = false
		c.restoreLoop()
		c.state = Recording
		return nil
	}
	c.silence(0)
	c.pos = 0
	c.pendingStart = false
	c.chain.SetBounds(supplier.Bounds{})
	c.rec.startAt = m.Cursor
	c.state = Recording
	if settings.StartTiming.Quantized {
		c.rec.startAt = m.NextBoundary(settings.StartTiming.Quantization)
		c.state = ScheduledForRecord
	}
	if settings.Length != (timeline.EvenQuantization{}) && m.BarDuration() > 0 {
		c.rec.hasStop = true
		c.rec.stopAt = c.rec.startAt + settings.Length.Bars()*m.BarDuration()
	}
	return nil
}

func (c *Clip) stopRecording(m timeline.Moment, timing timeline.StopTiming) {
	switch {
	case c.state == ScheduledForRecord:
		c.chain.Recorder.Cancel()
		c.halt(0)
	case c.rec.mode != supplier.RecordNormal:
		c.finishRecording()
	case timing.Mode == timeline.StopOnGrid:
		at := m.NextBoundary(timing.Quantization)
		if !c.rec.hasStop || at < c.rec.stopAt {
			c.rec.hasStop = true
			c.rec.stopAt = at
		}
	default:
		c.finishRecording()
	}
}

// finishRecording stores the outcome for the slot to report it.
func (c *Clip) finishRecording() {
	c.outcome = c.chain.Recorder.Finish()
	c.finished = true
	if c.rec.mode != supplier.RecordNormal {
		c.state = Playing
		return
	}
	if c.outcome.FrameCount == 0 {
		c.halt(0)
		return
	}
	c.pos = 0
	c.looped = true
	c.restoreLoop()
	if c.rec.playAfter {
		c.state = Playing
		return
	}
	c.halt(0)
}

// takeOutcome returns outcome of a finished recording once.
func (c *Clip) takeOutcome() (supplier.Outcome, bool) {
	if !c.finished {
		return supplier.Outcome{}, false
	}
	c.finished = false
	outcome := c.outcome
	c.outcome = supplier.Outcome{}
	return outcome, true
}

// isEmpty returns true if clip has no material.
func (c *Clip) isEmpty() bool {
	return c.FrameCount() == 0 && c.state != Recording && c.state != ScheduledForRecord
}

// Process advances the clip by one block. Audio is mixed into the output,
// MIDI events are added to MIDI output.
func (c *Clip) Process(args *ProcessArgs) {
	c.adaptTempo(args.Moment)
	switch c.state {
	case ScheduledForPlay, Playing, ScheduledForStop:
		c.play(args)
	case ScheduledForRecord, Recording:
		c.record(args)
	}
	if c.silencePending {
		c.flushSilence(args)
	}
}

func (c *Clip) adaptTempo(m timeline.Moment) {
	if c.tempo > 0 && m.Tempo > 0 && c.tempoMode != supplier.TempoIgnore {
		c.chain.SetTempo(c.tempoMode, m.Tempo/c.tempo)
		return
	}
	c.chain.SetTempo(supplier.TempoIgnore, 1)
}

func (c *Clip) play(args *ProcessArgs) {
	m, n := args.Moment, args.Frames
	from := 0
	if c.pendingStart {
		from = framesUntil(m, c.startAt)
		if from >= n {
			return
		}
		c.pendingStart = false
	}
	if c.state == ScheduledForPlay && m.Reached(c.startAt) {
		c.state = Playing
	}
	to := n
	if c.stopOnGrid {
		if m.Reached(c.stopAt) {
			c.halt(0)
			return
		}
		if until := m.FramesUntil(c.stopAt); until < n {
			to = until
		}
	}
	if c.retrigger {
		if at := framesUntil(m, c.retriggerAt); at < to {
			if at > from && !c.supply(args, from, at) {
				return
			}
			c.retrigger = false
			c.rewind()
			c.silenceFrame = at
			if at > from {
				from = at
			}
		}
	}
	if to > from {
		c.supply(args, from, to)
	}
}

// supply fills block frames [from, to) from the chain. Returns false if
// the material ended and clip stopped.
func (c *Clip) supply(args *ProcessArgs, from, to int) bool {
	var resp supplier.Response
	n := to - from
	if c.isMidi() {
		c.sink = offsetSink{target: args.MidiOutput, offset: from}
		resp = c.chain.SupplyMidi(supplier.MidiRequest{
			StartFrame:     c.pos,
			DestFrameCount: n,
			DestSampleRate: args.Moment.SampleRate,
		}, &c.sink)
	} else {
		dst := c.scratch.Frames(c.src, 0, n)
		resp = c.chain.SupplyAudio(supplier.AudioRequest{
			StartFrame:     c.pos,
			DestSampleRate: args.Moment.SampleRate,
		}, dst)
		dst.ClearFrom(resp.FramesWritten)
		if args.Output != nil {
			args.Output.Frames(c.dst, from, to).MixFrom(dst)
		}
	}
	if resp.Exhausted() || resp.FramesWritten < n {
		end := from + resp.FramesWritten
		if c.state == Recording {
			c.outcome = c.chain.Recorder.Finish()
			c.finished = true
		}
		c.halt(end)
		return false
	}
	c.pos = resp.NextFrame
	return true
}

func (c *Clip) record(args *ProcessArgs) {
	if c.rec.mode != supplier.RecordNormal {
		c.overdub(args)
		return
	}
	m, n := args.Moment, args.Frames
	from := 0
	if c.state == ScheduledForRecord {
		from = framesUntil(m, c.rec.startAt)
		if from >= n {
			return
		}
		c.state = Recording
	}
	to := n
	finish := false
	if c.rec.hasStop {
		if until := framesUntil(m, c.rec.stopAt); until < n {
			to = until
			if to < from {
				to = from
			}
			finish = true
		}
	}
	rec := c.chain.Recorder
	if to > from {
		switch c.rec.kind {
		case supplier.Audio:
			if args.Input != nil {
				rec.WriteAudio(args.Input.Frames(c.src, from, to))
			} else {
				silent := c.scratch.Frames(c.src, 0, to-from)
				silent.Clear()
				rec.WriteAudio(silent)
			}
		case supplier.Midi:
			base := rec.Length()
			for _, e := range args.MidiInput {
				if e.Frame >= from && e.Frame < to {
					rec.WriteMidi(base+e.Frame-from, e.Message)
				}
			}
			rec.Advance(to - from)
		}
	}
	if !finish && !rec.Full() {
		return
	}
	c.finishRecording()
	if c.state == Playing && to < n {
		c.supply(args, to, n)
	}
}

// overdub plays the clip and records MIDI input on top of it.
func (c *Clip) overdub(args *ProcessArgs) {
	start := c.pos
	count := c.FrameCount()
	rec := c.chain.Recorder
	if c.rec.mode == supplier.RecordMidiReplace && count > 0 {
		rec.Replace(start%count, args.Frames)
	}
	if !c.supply(args, 0, args.Frames) {
		return
	}
	for _, e := range args.MidiInput {
		frame := start + e.Frame
		if count > 0 {
			frame %= count
		}
		rec.WriteMidi(frame, e.Message)
	}
}

func (c *Clip) flushSilence(args *ProcessArgs) {
	c.silencePending = false
	if args.MidiOutput == nil {
		return
	}
	frame := c.silenceFrame
	if frame >= args.Frames {
		frame = args.Frames - 1
	}
	if frame < 0 {
		frame = 0
	}
	for _, msg := range allNotesOff {
		args.MidiOutput.AddEvent(frame, msg)
	}
	c.silenceFrame = 0
}

// framesUntil returns frames until the position, zero if it's reached.
func framesUntil(m timeline.Moment, pos float64) int {
	if m.Reached(pos) {
		return 0
	}
	return m.FramesUntil(pos)
}
