// Package mock provides mocks for column collaborators and allows to
// execute integration tests.
package mock

import (
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine"
	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

const (
	defaultNumChannels = 2
	defaultSampleRate  = 44100
)

// Material mocks an audio supplier with constant signal of Limit frames.
type Material struct {
	counter
	Limit      int
	Value      float64
	Channels   int
	SampleRate float64
}

// SupplyAudio implements supplier.Supplier. Frames before the start of
// material are silent.
func (m *Material) SupplyAudio(req supplier.AudioRequest, dest signal.Float64) supplier.Response {
	start := req.StartFrame
	end := start + dest.Size()
	if end > m.Limit {
		end = m.Limit
	}
	for i := range dest {
		for j := range dest[i] {
			if f := start + j; f >= 0 && f < end {
				dest[i][j] = m.Value
			} else {
				dest[i][j] = 0
			}
		}
	}
	if end <= start {
		return supplier.Response{NextFrame: supplier.EndOfMaterial, NextInnerFrame: supplier.EndOfMaterial}
	}
	consumed := end
	if start > 0 {
		consumed = end - start
	}
	if consumed < 0 {
		consumed = 0
	}
	m.advance(consumed)
	next, nextInner := end, end
	switch {
	case end >= m.Limit:
		next, nextInner = supplier.EndOfMaterial, supplier.EndOfMaterial
	case end < 0:
		nextInner = 0
	}
	return supplier.Response{
		FramesWritten:  end - start,
		FramesConsumed: consumed,
		NextFrame:      next,
		NextInnerFrame: nextInner,
	}
}

// SupplyMidi implements supplier.Supplier. Audio material has no events.
func (m *Material) SupplyMidi(req supplier.MidiRequest, _ supplier.EventSink) supplier.Response {
	return supplier.Response{NextFrame: supplier.EndOfMaterial, NextInnerFrame: supplier.EndOfMaterial}
}

// FrameCount implements supplier.Supplier.
func (m *Material) FrameCount() int {
	return m.Limit
}

// FrameRate implements supplier.Supplier.
func (m *Material) FrameRate() float64 {
	if m.SampleRate == 0 {
		return defaultSampleRate
	}
	return m.SampleRate
}

// NumChannels implements supplier.Supplier.
func (m *Material) NumChannels() int {
	if m.Channels == 0 {
		return defaultNumChannels
	}
	return m.Channels
}

// Kind implements supplier.Supplier.
func (m *Material) Kind() supplier.Kind {
	return supplier.Audio
}

// Acquirer mocks source.Acquirer with Material of Limit frames.
type Acquirer struct {
	counter
	Limit       int
	Value       float64
	SampleRate  float64
	ErrorOnCall error
}

// Acquire implements source.Acquirer.
func (a *Acquirer) Acquire(d source.Descriptor) (source.Source, error) {
	if a.ErrorOnCall != nil {
		return source.Source{}, a.ErrorOnCall
	}
	a.advance(0)
	return source.Source{
		Descriptor: d,
		Material:   &Material{Limit: a.Limit, Value: a.Value, SampleRate: a.SampleRate},
		Tempo:      d.Tempo,
	}, nil
}

// Transport mocks timeline.Transport. It's safe for concurrent use.
type Transport struct {
	state atomic.Int32
}

// TransportState implements timeline.Transport.
func (t *Transport) TransportState() timeline.TransportState {
	return timeline.TransportState(t.state.Load())
}

// Set changes the state.
func (t *Transport) Set(s timeline.TransportState) {
	t.state.Store(int32(s))
}

// Host mocks clipengine.Host. Scheduled processors are processed by Run.
type Host struct {
	mu         sync.Mutex
	processors map[clipengine.PlaybackHandle]clipengine.Processor
	next       clipengine.PlaybackHandle

	Scheduled int
	Cancelled int

	ErrorOnSchedule error
	ErrorOnCancel   error
}

// SchedulePlayback implements clipengine.Host.
func (h *Host) SchedulePlayback(p clipengine.Processor) (clipengine.PlaybackHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ErrorOnSchedule != nil {
		return 0, h.ErrorOnSchedule
	}
	if h.processors == nil {
		h.processors = make(map[clipengine.PlaybackHandle]clipengine.Processor)
	}
	h.next++
	h.processors[h.next] = p
	h.Scheduled++
	return h.next, nil
}

// CancelPlayback implements clipengine.Host.
func (h *Host) CancelPlayback(handle clipengine.PlaybackHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ErrorOnCancel != nil {
		return h.ErrorOnCancel
	}
	delete(h.processors, handle)
	h.Cancelled++
	return nil
}

// Len returns number of scheduled processors.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.processors)
}

// Run processes all scheduled processors once with the sink buffers.
func (h *Host) Run(s *Sink, m timeline.Moment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.processors {
		s.process(p, m)
	}
}

// Sink collects output of processed cycles. Buffer is not thread-safe,
// so should not be checked while host is running.
type Sink struct {
	counter
	NumChannels int
	Frames      int
	Discard     bool

	output signal.Float64
	buffer signal.Float64
	events []supplier.Event
	frame  int
}

// Process runs a single cycle of processor.
func (s *Sink) Process(p clipengine.Processor, m timeline.Moment) {
	s.process(p, m)
}

func (s *Sink) process(p clipengine.Processor, m timeline.Moment) {
	if s.output == nil {
		numChannels := s.NumChannels
		if numChannels == 0 {
			numChannels = defaultNumChannels
		}
		s.output = signal.EmptyFloat64(numChannels, s.Frames)
	}
	args := clipengine.ProcessArgs{
		Frames:     s.Frames,
		Moment:     m,
		Output:     s.output,
		MidiOutput: s,
	}
	p.Process(&args)
	if !s.Discard {
		s.buffer = s.buffer.Append(s.output)
	}
	s.frame += args.Frames
	s.advance(args.Frames)
}

// AddEvent implements supplier.EventSink. Frames are stored relative to
// the first processed cycle.
func (s *Sink) AddEvent(frame int, msg midi.Message) {
	if s.Discard {
		return
	}
	s.events = append(s.events, supplier.Event{Frame: s.frame + frame, Message: msg})
}

// Buffer returns collected output.
func (s *Sink) Buffer() signal.Float64 {
	return s.buffer
}

// Events returns collected MIDI events.
func (s *Sink) Events() []supplier.Event {
	return s.events
}

// Reset discards collected output.
func (s *Sink) Reset() {
	s.buffer = nil
	s.events = nil
	s.frame = 0
	s.reset()
}

// counter counts calls and frames.
type counter struct {
	calls  int
	frames int
}

func (c *counter) advance(frames int) {
	c.calls++
	c.frames += frames
}

func (c *counter) reset() {
	c.calls, c.frames = 0, 0
}

// Count returns number of calls and frames.
func (c *counter) Count() (int, int) {
	return c.calls, c.frames
}
