package supplier

import (
	"sort"

	"github.com/dudk/clipengine/signal"
)

type (
	// AudioMaterial is a leaf supplier of in-memory audio.
	AudioMaterial struct {
		data       signal.Float64
		sampleRate float64
	}

	// MidiMaterial is a leaf supplier of in-memory MIDI events. Event
	// frames are relative to the start of material.
	MidiMaterial struct {
		events     []Event
		frameCount int
		frameRate  float64
	}
)

// NewAudioMaterial wraps the buffer. Buffer must not be mutated after.
func NewAudioMaterial(data signal.Float64, sampleRate float64) *AudioMaterial {
	return &AudioMaterial{
		data:       data,
		sampleRate: sampleRate,
	}
}

// Data returns the underlying buffer.
func (m *AudioMaterial) Data() signal.Float64 {
	return m.data
}

// SupplyAudio implements Supplier. Material with fewer channels than
// destination is spread over destination channels.
func (m *AudioMaterial) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	resp := cover(req.StartFrame, dest.Size(), m.FrameCount())
	numChannels := m.data.NumChannels()
	if numChannels == 0 {
		return resp
	}
	for c := range dest {
		src := m.data[c%numChannels]
		for i := 0; i < resp.FramesWritten; i++ {
			frame := req.StartFrame + i
			if frame < 0 {
				dest[c][i] = 0
				continue
			}
			dest[c][i] = src[frame]
		}
	}
	return resp
}

// SupplyMidi implements Supplier. Audio material has no events.
func (m *AudioMaterial) SupplyMidi(req MidiRequest, _ EventSink) Response {
	return cover(req.StartFrame, req.DestFrameCount, m.FrameCount())
}

// FrameCount implements Supplier.
func (m *AudioMaterial) FrameCount() int {
	return m.data.Size()
}

// FrameRate implements Supplier.
func (m *AudioMaterial) FrameRate() float64 {
	return m.sampleRate
}

// NumChannels implements Supplier.
func (m *AudioMaterial) NumChannels() int {
	return m.data.NumChannels()
}

// Kind implements Supplier.
func (m *AudioMaterial) Kind() Kind {
	return Audio
}

// NewMidiMaterial copies and sorts events. Events outside of
// [0, frameCount) are discarded.
func NewMidiMaterial(events []Event, frameCount int, frameRate float64) *MidiMaterial {
	sorted := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Frame < 0 || e.Frame >= frameCount {
			continue
		}
		sorted = append(sorted, e)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Frame < sorted[j].Frame
	})
	return &MidiMaterial{
		events:     sorted,
		frameCount: frameCount,
		frameRate:  frameRate,
	}
}

// Events returns events ordered by frame.
func (m *MidiMaterial) Events() []Event {
	return m.events
}

// SupplyAudio implements Supplier. MIDI material is silent.
func (m *MidiMaterial) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	resp := cover(req.StartFrame, dest.Size(), m.frameCount)
	for c := range dest {
		for i := 0; i < resp.FramesWritten; i++ {
			dest[c][i] = 0
		}
	}
	return resp
}

// SupplyMidi implements Supplier. Event frames are written relative to
// the request start.
func (m *MidiMaterial) SupplyMidi(req MidiRequest, sink EventSink) Response {
	resp := cover(req.StartFrame, req.DestFrameCount, m.frameCount)
	if resp.FramesWritten == 0 {
		return resp
	}
	from := req.StartFrame
	if from < 0 {
		from = 0
	}
	to := req.StartFrame + resp.FramesWritten
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].Frame >= from
	})
	for ; i < len(m.events) && m.events[i].Frame < to; i++ {
		sink.AddEvent(m.events[i].Frame-req.StartFrame, m.events[i].Message)
	}
	return resp
}

// FrameCount implements Supplier.
func (m *MidiMaterial) FrameCount() int {
	return m.frameCount
}

// FrameRate implements Supplier.
func (m *MidiMaterial) FrameRate() float64 {
	return m.frameRate
}

// NumChannels implements Supplier.
func (m *MidiMaterial) NumChannels() int {
	return 0
}

// Kind implements Supplier.
func (m *MidiMaterial) Kind() Kind {
	return Midi
}
