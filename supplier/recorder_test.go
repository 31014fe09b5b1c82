package supplier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/supplier"
)

func TestRecordAudio(t *testing.T) {
	chain := supplier.NewChain(nil)
	assert.Equal(t, 0, chain.Head().FrameCount())

	err := chain.Recorder.Start(supplier.RecordNormal, supplier.NewBuffers(supplier.Audio, 2, 48000, 100, 0))
	assert.Nil(t, err)
	assert.Equal(t, supplier.ErrRecording, chain.Recorder.Start(supplier.RecordNormal, nil))

	assert.Equal(t, 60, chain.Recorder.WriteAudio(ramp(2, 60)))
	assert.False(t, chain.Recorder.Full())
	assert.Equal(t, 40, chain.Recorder.WriteAudio(ramp(2, 60)))
	assert.True(t, chain.Recorder.Full())

	outcome := chain.Recorder.Finish()
	assert.Equal(t, supplier.Audio, outcome.Kind)
	assert.Equal(t, 100, outcome.FrameCount)
	assert.Equal(t, 20, outcome.Dropped)
	assert.Equal(t, 100, chain.Head().FrameCount())
	assert.Equal(t, 2, chain.Head().NumChannels())

	dest := signal.EmptyFloat64(2, 100)
	resp := chain.SupplyAudio(supplier.AudioRequest{DestSampleRate: 48000}, dest)
	assert.Equal(t, 100, resp.FramesWritten)
	assert.Equal(t, 59.0, dest[0][59])
	assert.Equal(t, 0.0, dest[0][60])
	assert.Equal(t, 39.0, dest[1][99])

	material := outcome.Material()
	assert.Equal(t, 100, material.FrameCount())
	assert.Equal(t, 48000.0, material.FrameRate())
}

func TestRecordMidiNormal(t *testing.T) {
	recorder := supplier.NewRecorder(nil)
	assert.Nil(t, recorder.Start(supplier.RecordNormal, supplier.NewBuffers(supplier.Midi, 0, 48000, 0, 8)))
	recorder.WriteMidi(10, midi.NoteOn(0, 60, 100))
	recorder.Advance(64)
	recorder.WriteMidi(70, midi.NoteOff(0, 60))
	recorder.Advance(64)

	outcome := recorder.Finish()
	assert.Equal(t, 128, outcome.FrameCount)
	assert.Equal(t, []int{10, 70}, eventFrames(outcome.Events))

	events := supplier.NewEventList(8)
	resp := recorder.SupplyMidi(supplier.MidiRequest{StartFrame: 64, DestFrameCount: 64}, events)
	assert.Equal(t, 64, resp.FramesWritten)
	assert.Equal(t, []int{6}, eventFrames(events.Events()))
}

func TestRecordMidiOverdub(t *testing.T) {
	base := supplier.NewMidiMaterial([]supplier.Event{
		{Frame: 100, Message: midi.NoteOn(0, 60, 100)},
	}, 1000, 48000)
	recorder := supplier.NewRecorder(base)
	assert.Nil(t, recorder.Start(supplier.RecordMidiOverdub, supplier.NewBuffers(supplier.Midi, 0, 48000, 0, 8)))
	recorder.WriteMidi(200, midi.NoteOn(0, 62, 100))

	events := supplier.NewEventList(8)
	recorder.SupplyMidi(supplier.MidiRequest{DestFrameCount: 1000}, events)
	assert.Equal(t, []int{100, 200}, eventFrames(events.Events()))

	outcome := recorder.Finish()
	assert.Equal(t, 1000, outcome.FrameCount)
	material := outcome.Material().(*supplier.MidiMaterial)
	assert.Equal(t, []int{100, 200}, eventFrames(material.Events()))
}

func TestRecordMidiReplace(t *testing.T) {
	base := supplier.NewMidiMaterial([]supplier.Event{
		{Frame: 100, Message: midi.NoteOn(0, 60, 100)},
		{Frame: 500, Message: midi.NoteOn(0, 64, 100)},
	}, 1000, 48000)
	recorder := supplier.NewRecorder(base)
	assert.Nil(t, recorder.Start(supplier.RecordMidiReplace, supplier.NewBuffers(supplier.Midi, 0, 48000, 0, 8)))
	recorder.Replace(400, 200)
	recorder.WriteMidi(450, midi.NoteOn(0, 67, 100))

	events := supplier.NewEventList(8)
	recorder.SupplyMidi(supplier.MidiRequest{StartFrame: 50, DestFrameCount: 950}, events)
	assert.Equal(t, []int{50, 400}, eventFrames(events.Events()))

	material := recorder.Finish().Material().(*supplier.MidiMaterial)
	assert.Equal(t, []int{100, 450}, eventFrames(material.Events()))
}

func TestRecordModeErrors(t *testing.T) {
	audio := supplier.NewRecorder(supplier.NewAudioMaterial(ramp(1, 10), 48000))
	err := audio.Start(supplier.RecordMidiOverdub, supplier.NewBuffers(supplier.Audio, 1, 48000, 10, 0))
	assert.Equal(t, supplier.ErrNotMidi, err)
	assert.Equal(t, supplier.ErrNotPrepared, audio.Start(supplier.RecordNormal, nil))
	assert.False(t, audio.IsRecording())
}

func TestRecordCancel(t *testing.T) {
	recorder := supplier.NewRecorder(supplier.NewAudioMaterial(ramp(2, 10), 48000))
	assert.Nil(t, recorder.Start(supplier.RecordNormal, supplier.NewBuffers(supplier.Audio, 2, 48000, 100, 0)))
	recorder.WriteAudio(ramp(2, 60))
	assert.Equal(t, 60, recorder.Finish().FrameCount)
	assert.Equal(t, 60, recorder.FrameCount())

	assert.Nil(t, recorder.Start(supplier.RecordNormal, supplier.NewBuffers(supplier.Audio, 2, 48000, 100, 0)))
	assert.Equal(t, 10, recorder.FrameCount())
	recorder.WriteAudio(ramp(2, 30))
	recorder.Cancel()
	assert.False(t, recorder.IsRecording())
	assert.Equal(t, 60, recorder.FrameCount())

	dest := signal.EmptyFloat64(2, 60)
	resp := recorder.SupplyAudio(supplier.AudioRequest{DestSampleRate: 48000}, dest)
	assert.Equal(t, 60, resp.FramesWritten)
	assert.Equal(t, 59.0, dest[1][59])
}
