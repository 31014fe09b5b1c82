package supplier

import (
	"errors"

	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine/signal"
)

// RecordMode defines how recorded material is combined with existing one.
type RecordMode int

const (
	// RecordNormal replaces the whole material with recorded one.
	RecordNormal RecordMode = iota
	// RecordMidiOverdub adds recorded events to existing MIDI material.
	RecordMidiOverdub
	// RecordMidiReplace replaces existing events within recorded span.
	RecordMidiReplace
)

func (m RecordMode) String() string {
	switch m {
	case RecordNormal:
		return "normal"
	case RecordMidiOverdub:
		return "overdub"
	case RecordMidiReplace:
		return "replace"
	}
	return "unknown"
}

var (
	// ErrNotPrepared is returned when recording starts without buffers.
	ErrNotPrepared = errors.New("recorder buffers are not prepared")
	// ErrNotMidi is returned when MIDI record mode is used with audio.
	ErrNotMidi = errors.New("midi record mode requires midi material")
	// ErrRecording is returned when recorder is already recording.
	ErrRecording = errors.New("recorder is already recording")
)

// Buffers hold memory of one recording. They are allocated outside of the
// real-time context and handed over to the recorder when recording starts.
type Buffers struct {
	kind        Kind
	numChannels int
	frameRate   float64
	audio       signal.Float64
	events      []Event
	view        signal.Float64
}

// NewBuffers allocates buffers for a recording of maxFrames audio frames
// or maxEvents MIDI events.
func NewBuffers(kind Kind, numChannels int, frameRate float64, maxFrames, maxEvents int) *Buffers {
	b := &Buffers{
		kind:        kind,
		numChannels: numChannels,
		frameRate:   frameRate,
		view:        newScratch(),
	}
	switch kind {
	case Audio:
		b.audio = signal.EmptyFloat64(numChannels, maxFrames)
	case Midi:
		b.events = make([]Event, 0, maxEvents)
	}
	return b
}

// Kind returns kind of material the buffers are for.
func (b *Buffers) Kind() Kind {
	return b.kind
}

// Recorder sits at the foot of a chain and captures incoming material
// into buffers, so nothing allocates while recording. After a normal
// recording is finished, recorded material replaces the inner one. MIDI
// overdub and replace recordings are overlaid on the inner material.
type Recorder struct {
	inner Supplier
	buf   *Buffers

	mode      RecordMode
	recording bool
	length    int
	dropped   int
	view      signal.Float64

	// replaced span of inner material in material frames.
	replaceFrom, replaceLength int

	audioMaterial AudioMaterial
	midiMaterial  MidiMaterial
	recorded      Supplier
	previous      Supplier

	filter replaceSink
}

// Outcome is the result of a finished recording. It references recording
// buffers, Material must be called outside of the real-time context.
type Outcome struct {
	Kind       Kind
	Mode       RecordMode
	FrameRate  float64
	FrameCount int
	// Audio is recorded audio for normal audio recordings.
	Audio signal.Float64
	// Events are recorded events in material frames.
	Events []Event
	// Base is the material recording was overlaid on.
	Base Supplier
	// Dropped is number of frames or events which didn't fit buffers.
	Dropped int

	replaceFrom, replaceLength int
}

// NewRecorder wraps the supplier. Inner can be nil if slot was empty.
func NewRecorder(inner Supplier) *Recorder {
	return &Recorder{
		inner: inner,
		view:  newScratch(),
	}
}

// Start begins recording into the buffers.
func (r *Recorder) Start(mode RecordMode, buf *Buffers) error {
	if r.recording {
		return ErrRecording
	}
	if buf == nil {
		return ErrNotPrepared
	}
	if mode != RecordNormal && (buf.kind != Midi || r.inner == nil || r.inner.Kind() != Midi) {
		return ErrNotMidi
	}
	buf.events = buf.events[:0]
	r.buf = buf
	r.mode = mode
	r.recording = true
	r.length = 0
	r.dropped = 0
	r.replaceFrom, r.replaceLength = 0, 0
	r.previous = r.recorded
	if mode == RecordNormal {
		r.recorded = nil
	}
	return nil
}

// Cancel stops recording and discards everything recorded. Material
// served before the recording is restored.
func (r *Recorder) Cancel() {
	if !r.recording {
		return
	}
	r.recording = false
	r.recorded = r.previous
	r.buf.events = r.buf.events[:0]
	r.length = 0
}

// IsRecording returns true if recording is in progress.
func (r *Recorder) IsRecording() bool {
	return r.recording
}

// Mode returns current record mode.
func (r *Recorder) Mode() RecordMode {
	return r.mode
}

// Length returns number of recorded frames.
func (r *Recorder) Length() int {
	return r.length
}

// Full returns true if no more audio fits into buffers.
func (r *Recorder) Full() bool {
	return r.buf != nil && r.buf.kind == Audio && r.length >= r.buf.audio.Size()
}

// WriteAudio appends input to recording. Returns number of frames
// appended.
func (r *Recorder) WriteAudio(input signal.Float64) int {
	if !r.recording || r.buf.kind != Audio {
		return 0
	}
	n := input.Size()
	if free := r.buf.audio.Size() - r.length; n > free {
		r.dropped += n - free
		n = free
	}
	if n == 0 {
		return 0
	}
	dst := view(&r.view, r.buf.audio, r.length, r.length+n)
	if input.Size() > n {
		input = view(&r.buf.view, input, 0, n)
	}
	dst.CopyFrom(input)
	r.length += n
	return n
}

// Advance extends the length of normal MIDI recording by frames.
func (r *Recorder) Advance(frames int) {
	if r.recording && r.buf.kind == Midi && r.mode == RecordNormal {
		r.length += frames
	}
}

// WriteMidi records an event. For normal recordings frame is relative to
// the recording start, for overdub and replace it's the material frame.
func (r *Recorder) WriteMidi(frame int, msg midi.Message) {
	if !r.recording || r.buf.kind != Midi {
		return
	}
	events := r.buf.events
	if len(events) == cap(events) {
		r.dropped++
		return
	}
	i := len(events)
	for i > 0 && events[i-1].Frame > frame {
		i--
	}
	events = append(events, Event{})
	copy(events[i+1:], events[i:])
	events[i] = Event{Frame: frame, Message: msg}
	r.buf.events = events
}

// Replace marks material frames [from, from+length) as replaced. It's
// called by the clip for every block of a replace recording.
func (r *Recorder) Replace(from, length int) {
	if !r.recording || r.mode != RecordMidiReplace {
		return
	}
	if r.replaceLength == 0 {
		r.replaceFrom = from
	}
	r.replaceLength += length
}

// Finish stops recording and returns its outcome. Recorded material of
// normal recordings is served by the recorder afterwards.
func (r *Recorder) Finish() Outcome {
	buf := r.buf
	if !r.recording || buf == nil {
		return Outcome{Kind: r.Kind(), FrameRate: r.FrameRate()}
	}
	r.recording = false
	outcome := Outcome{
		Kind:          buf.kind,
		Mode:          r.mode,
		FrameRate:     buf.frameRate,
		Dropped:       r.dropped,
		Base:          r.inner,
		replaceFrom:   r.replaceFrom,
		replaceLength: r.replaceLength,
	}
	switch {
	case r.mode != RecordNormal:
		outcome.FrameCount = r.inner.FrameCount()
		outcome.Events = buf.events
	case buf.kind == Audio:
		r.audioMaterial = AudioMaterial{
			data:       buf.audio.Frames(buf.view, 0, r.length),
			sampleRate: buf.frameRate,
		}
		r.recorded = &r.audioMaterial
		outcome.FrameCount = r.length
		outcome.Audio = r.audioMaterial.data
		outcome.Base = nil
	default:
		r.midiMaterial = MidiMaterial{
			events:     buf.events,
			frameCount: r.length,
			frameRate:  buf.frameRate,
		}
		r.recorded = &r.midiMaterial
		outcome.FrameCount = r.length
		outcome.Events = buf.events
		outcome.Base = nil
	}
	return outcome
}

func (r *Recorder) current() Supplier {
	if r.recorded != nil {
		return r.recorded
	}
	return r.inner
}

// SupplyAudio implements Supplier.
func (r *Recorder) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	current := r.current()
	if current == nil {
		return Response{NextFrame: EndOfMaterial, NextInnerFrame: EndOfMaterial}
	}
	return current.SupplyAudio(req, dest)
}

// SupplyMidi implements Supplier.
func (r *Recorder) SupplyMidi(req MidiRequest, sink EventSink) Response {
	current := r.current()
	if current == nil {
		return Response{NextFrame: EndOfMaterial, NextInnerFrame: EndOfMaterial}
	}
	if r.recorded != nil || r.mode == RecordNormal || r.buf == nil {
		return current.SupplyMidi(req, sink)
	}
	count := current.FrameCount()
	r.filter = replaceSink{
		target: sink,
		start:  req.StartFrame,
		from:   r.replaceFrom,
		length: r.replaceLength,
		count:  count,
	}
	resp := current.SupplyMidi(req, &r.filter)
	from := req.StartFrame
	if from < 0 {
		from = 0
	}
	to := req.StartFrame + resp.FramesWritten
	for _, e := range r.buf.events {
		if e.Frame >= to {
			break
		}
		if e.Frame >= from {
			sink.AddEvent(e.Frame-req.StartFrame, e.Message)
		}
	}
	return resp
}

// FrameCount implements Supplier.
func (r *Recorder) FrameCount() int {
	if current := r.current(); current != nil {
		return current.FrameCount()
	}
	return 0
}

// FrameRate implements Supplier.
func (r *Recorder) FrameRate() float64 {
	if r.recorded == nil && r.inner != nil {
		return r.inner.FrameRate()
	}
	if r.buf != nil {
		return r.buf.frameRate
	}
	return 0
}

// NumChannels implements Supplier.
func (r *Recorder) NumChannels() int {
	if r.recorded == nil && r.inner != nil {
		return r.inner.NumChannels()
	}
	if r.buf != nil {
		return r.buf.numChannels
	}
	return 0
}

// Kind implements Supplier.
func (r *Recorder) Kind() Kind {
	if r.recorded == nil && r.inner != nil {
		return r.inner.Kind()
	}
	if r.buf != nil {
		return r.buf.kind
	}
	return Audio
}

// Material builds a standalone supplier of the outcome. It copies
// recorder buffers, so it must not be called in the real-time context.
func (o Outcome) Material() Supplier {
	switch {
	case o.Kind == Audio:
		data := signal.Float64(nil).Append(o.Audio)
		return NewAudioMaterial(data, o.FrameRate)
	case o.Mode == RecordNormal:
		return NewMidiMaterial(o.Events, o.FrameCount, o.FrameRate)
	}
	collector := eventCollector{}
	if o.Base != nil {
		sink := replaceSink{
			target: &collector,
			from:   o.replaceFrom,
			length: o.replaceLength,
			count:  o.FrameCount,
		}
		if o.Mode == RecordMidiOverdub {
			sink.length = 0
		}
		o.Base.SupplyMidi(MidiRequest{DestFrameCount: o.FrameCount, DestSampleRate: o.FrameRate}, &sink)
	}
	collector.events = append(collector.events, o.Events...)
	return NewMidiMaterial(collector.events, o.FrameCount, o.FrameRate)
}

// replaceSink drops events within the replaced span of material frames.
type replaceSink struct {
	target       EventSink
	start        int
	from, length int
	count        int
}

func (s *replaceSink) AddEvent(frame int, msg midi.Message) {
	if s.length > 0 && s.count > 0 {
		if s.length >= s.count {
			return
		}
		materialFrame := frame + s.start
		if d := ((materialFrame-s.from)%s.count + s.count) % s.count; d < s.length {
			return
		}
	}
	s.target.AddEvent(frame, msg)
}
