package clipengine

import (
	"sync/atomic"
	"time"

	"github.com/dudk/clipengine/metric"
	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

const (
	// MaxSlots bounds number of slots in a column.
	MaxSlots = 1024
	// maxStaleness is the number of cycles a position can stay
	// undelivered before it's delivered like a critical event.
	maxStaleness = 16
)

// ProcessArgs are the buffers of one processing cycle.
type ProcessArgs struct {
	// Frames in the cycle. Output size is used if zero.
	Frames int
	// Moment is used if column has no timeline.
	Moment timeline.Moment
	// Output receives the mix of all clips. It's cleared first.
	Output signal.Float64
	// Input is recorded by audio recordings.
	Input signal.Float64
	// MidiInput is recorded by MIDI recordings. Frames are relative to
	// the cycle start.
	MidiInput []supplier.Event
	// MidiOutput receives events of MIDI clips.
	MidiOutput supplier.EventSink
}

type position struct {
	pending bool
	pos     float64
	stale   int
}

// processor is the real-time side of a column. Nothing here blocks or
// allocates in the steady state.
type processor struct {
	slots     []Slot
	positions []position
	settings  ColumnSettings
	maxFrames int

	commands <-chan Command
	events   chan<- Event
	batch    int

	transport timeline.Transport
	timeline  timeline.Timeline
	watcher   timeline.Watcher

	// critical events which weren't delivered yet.
	critical []Event
	meter    *metric.Meter
	interval *pollInterval
}

func (p *processor) process(args *ProcessArgs) {
	if args.Frames == 0 {
		args.Frames = args.Output.Size()
	}
	if args.Frames > p.maxFrames {
		args.Frames = p.maxFrames
	}
	if p.timeline != nil {
		args.Moment = p.timeline.CurrentMoment()
	}
	if p.transport != nil {
		if change := p.watcher.Observe(p.transport.TransportState(), args.Moment, args.Frames); change != timeline.NoChange {
			p.transportChange(change, args.Moment)
		}
	}
	p.drain(args.Moment)
	if args.Output != nil {
		args.Output.Clear()
	}
	for i := range p.slots {
		p.slots[i].Process(args)
	}
	p.collect()
	p.flush()
	p.meter.Tick(args.Frames)
}

// drain applies up to batch commands.
func (p *processor) drain(m timeline.Moment) {
	applied := 0
	defer func() {
		p.meter.Commands(applied)
	}()
	for applied < p.batch {
		select {
		case cmd := <-p.commands:
			p.apply(cmd, m)
			applied++
		default:
			return
		}
	}
}

func (p *processor) apply(cmd Command, m timeline.Moment) {
	var (
		index int
		slot  *Slot
		err   error
	)
	switch cmd := cmd.(type) {
	case FillSlot:
		index = cmd.Index
		if slot = p.slot(index); slot == nil {
			err = ErrSlotIndexOutOfRange
			break
		}
		if cmd.Clip != nil {
			cmd.Clip.SetTempoAdaption(p.settings.TempoAdaption)
		}
		slot.Fill(cmd.Clip)
	case ClearSlot:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			slot.Clear()
		}
	case PlayClip:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			err = slot.PlayClip(m, cmd.Timing, &p.settings)
		}
	case StopClip:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			err = slot.StopClip(m, cmd.Timing, &p.settings)
		}
	case PauseClip:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			err = slot.PauseClip()
		}
	case SeekClip:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			err = slot.SeekClip(cmd.Pos)
		}
	case SetClipVolume:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			err = slot.SetClipVolume(cmd.Volume)
		}
	case SetClipLooped:
		index = cmd.Index
		if slot, err = p.lookup(index); err == nil {
			err = slot.SetClipLooped(cmd.Looped)
		}
	case StartRecording:
		index = cmd.Index
		if slot = p.slot(index); slot == nil {
			err = ErrSlotIndexOutOfRange
			break
		}
		err = slot.RecordClip(m, cmd.Behavior, cmd.Buffers, cmd.Clip, &p.settings)
	case ProcessTransportChange:
		p.transportChange(cmd.Change, cmd.Moment)
	case UpdateSettings:
		p.settings = cmd.Settings
		for i := range p.slots {
			if c := p.slots[i].clip; c != nil {
				c.SetTempoAdaption(p.settings.TempoAdaption)
			}
		}
	}
	if err != nil {
		p.critical = append(p.critical, Event{Kind: ErrorOccurred, Index: index, Err: err})
	}
}

// slot returns the slot and creates missing slots up to index.
func (p *processor) slot(index int) *Slot {
	if index < 0 || index >= cap(p.slots) {
		return nil
	}
	for n := len(p.slots); n <= index; n++ {
		p.slots = p.slots[:n+1]
		p.slots[n] = Slot{index: n}
		p.positions = p.positions[:n+1]
		p.positions[n] = position{}
	}
	return &p.slots[index]
}

// lookup returns existing slot.
func (p *processor) lookup(index int) (*Slot, error) {
	if index < 0 || index >= cap(p.slots) {
		return nil, ErrSlotIndexOutOfRange
	}
	if index >= len(p.slots) {
		return nil, ErrSlotEmpty
	}
	return &p.slots[index], nil
}

func (p *processor) transportChange(change timeline.Change, m timeline.Moment) {
	for i := range p.slots {
		p.slots[i].ProcessTransportChange(change, m)
	}
}

// collect turns changes of slots into events.
func (p *processor) collect() {
	for i := range p.slots {
		s := &p.slots[i]
		c := s.clip
		if c != nil {
			if outcome, ok := c.takeOutcome(); ok {
				p.critical = append(p.critical, Event{
					Kind:    RecordingFinished,
					Index:   i,
					ClipID:  c.id,
					Outcome: outcome,
				})
			}
		}
		if state, ok := s.changed(); ok {
			e := Event{Kind: PlayStateChanged, Index: i, State: state}
			if c != nil {
				e.ClipID = c.id
			}
			p.critical = append(p.critical, e)
		}
		if c != nil && c.state.IsAdvancing() {
			p.positions[i].pending = true
			p.positions[i].pos = c.ProportionalPos()
		}
	}
}

// flush sends events without blocking. Critical events which didn't fit
// are kept in order for the next cycle. Positions are coalesced, but not
// longer than maxStaleness cycles.
func (p *processor) flush() {
	saturated := false
	sent := 0
	for _, e := range p.critical {
		if !p.send(e) {
			saturated = true
			break
		}
		sent++
	}
	if sent > 0 {
		n := copy(p.critical, p.critical[sent:])
		p.critical = p.critical[:n]
	}
	p.meter.Deferred(len(p.critical))

	coalesced := 0
	for i := range p.positions {
		pos := &p.positions[i]
		if !pos.pending {
			continue
		}
		e := Event{Kind: PositionChanged, Index: i, Pos: pos.pos}
		if c := p.slots[i].clip; c != nil {
			e.ClipID = c.id
		}
		if !saturated && p.send(e) {
			pos.pending = false
			pos.stale = 0
			continue
		}
		saturated = true
		coalesced++
		if pos.stale++; pos.stale > maxStaleness {
			p.critical = append(p.critical, e)
			pos.pending = false
			pos.stale = 0
		}
	}
	p.meter.Coalesced(coalesced)
	p.interval.update(saturated)
}

func (p *processor) send(e Event) bool {
	select {
	case p.events <- e:
		return true
	default:
		return false
	}
}

// pollInterval is the interval controller should poll events with. It
// widens while event queue is saturated.
type pollInterval struct {
	base, max time.Duration
	current   atomic.Int64
}

func newPollInterval(base, max time.Duration) *pollInterval {
	i := pollInterval{base: base, max: max}
	i.current.Store(int64(base))
	return &i
}

func (i *pollInterval) update(saturated bool) {
	current := time.Duration(i.current.Load())
	switch {
	case saturated:
		current *= 2
		if current > i.max {
			current = i.max
		}
	case current > i.base:
		current /= 2
		if current < i.base {
			current = i.base
		}
	default:
		return
	}
	i.current.Store(int64(current))
}

func (i *pollInterval) get() time.Duration {
	return time.Duration(i.current.Load())
}
