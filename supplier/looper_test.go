package supplier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/supplier"
)

// ramp returns material where every sample equals its frame index.
func ramp(numChannels, frames int) signal.Float64 {
	buf := signal.EmptyFloat64(numChannels, frames)
	for c := range buf {
		for i := range buf[c] {
			buf[c][i] = float64(i)
		}
	}
	return buf
}

func constant(numChannels, frames int, value float64) signal.Float64 {
	buf := signal.EmptyFloat64(numChannels, frames)
	for c := range buf {
		for i := range buf[c] {
			buf[c][i] = value
		}
	}
	return buf
}

func infiniteLooper(material supplier.Supplier) *supplier.Looper {
	l := supplier.NewLooper(material)
	l.SetLoopBehavior(supplier.Infinitely())
	return l
}

func TestLooperSplice(t *testing.T) {
	looper := infiniteLooper(supplier.NewAudioMaterial(ramp(1, 1000), 48000))
	dest := signal.EmptyFloat64(1, 700)

	resp := looper.SupplyAudio(supplier.AudioRequest{StartFrame: 0, DestSampleRate: 48000}, dest)
	assert.Equal(t, 700, resp.FramesWritten)
	assert.Equal(t, 700, resp.FramesConsumed)
	assert.Equal(t, 700, resp.NextInnerFrame)
	assert.Equal(t, 700, resp.NextFrame)

	resp = looper.SupplyAudio(supplier.AudioRequest{StartFrame: 700, DestSampleRate: 48000}, dest)
	assert.Equal(t, 700, resp.FramesWritten)
	assert.Equal(t, 700, resp.FramesConsumed)
	assert.Equal(t, 400, resp.NextInnerFrame)
	assert.Equal(t, 1400, resp.NextFrame)
	assert.Equal(t, 999.0, dest[0][299])
	assert.Equal(t, 0.0, dest[0][300])
	assert.Equal(t, 399.0, dest[0][699])
}

func TestLoopContinuity(t *testing.T) {
	tests := []struct {
		frameCount int
		start      int
		chunks     []int
	}{
		{frameCount: 1000, start: 0, chunks: []int{1, 333, 700, 999, 1467}},
		{frameCount: 1000, start: 250, chunks: []int{512, 512, 512, 512, 512, 512}},
		{frameCount: 100, start: 3, chunks: []int{64, 250, 7, 1}},
		{frameCount: 7, start: 0, chunks: []int{5, 30, 2}},
	}
	for _, test := range tests {
		total := 0
		for _, n := range test.chunks {
			total += n
		}
		material := supplier.NewAudioMaterial(ramp(2, test.frameCount), 48000)

		whole := signal.EmptyFloat64(2, total)
		infiniteLooper(material).SupplyAudio(supplier.AudioRequest{StartFrame: test.start}, whole)

		looper := infiniteLooper(material)
		chunked := signal.EmptyFloat64(2, 0)
		start := test.start
		for _, n := range test.chunks {
			dest := signal.EmptyFloat64(2, n)
			resp := looper.SupplyAudio(supplier.AudioRequest{StartFrame: start}, dest)
			assert.Equal(t, n, resp.FramesWritten)
			chunked = chunked.Append(dest)
			start = resp.NextFrame
		}
		assert.Equal(t, whole, chunked)
	}
}

func TestUnmoduloMonotonicity(t *testing.T) {
	looper := infiniteLooper(supplier.NewAudioMaterial(ramp(1, 1000), 48000))
	start := 0
	previous := 0
	for _, n := range []int{700, 300, 1000, 999, 1, 2500, 64, 128} {
		resp := looper.SupplyAudio(supplier.AudioRequest{StartFrame: start}, signal.EmptyFloat64(1, n))
		assert.GreaterOrEqual(t, resp.NextFrame, previous)
		assert.Equal(t, start+n, resp.NextFrame)
		assert.Equal(t, resp.NextFrame%1000, resp.NextInnerFrame)
		previous = resp.NextFrame
		start = resp.NextFrame
	}
}

func TestFadeSymmetry(t *testing.T) {
	const frameCount = 1000
	looper := infiniteLooper(supplier.NewAudioMaterial(constant(1, frameCount, 1), 48000))
	looper.SetFadesEnabled(true)
	fade := looper.FadeLength()
	assert.Equal(t, 480, fade)

	dest := signal.EmptyFloat64(1, 2*frameCount)
	looper.SupplyAudio(supplier.AudioRequest{StartFrame: 0}, dest)
	assert.Equal(t, 1.0, dest[0][0])
	assert.InDelta(t, 0.5, dest[0][frameCount-fade/2], 1e-9)
	assert.InDelta(t, 0.5, dest[0][frameCount+fade/2], 1e-9)
	assert.Equal(t, 0.0, dest[0][frameCount])
	assert.Equal(t, 1.0, dest[0][frameCount+fade])
}

func TestFadeLength(t *testing.T) {
	tests := []struct {
		sampleRate float64
		frameCount int
		expected   int
	}{
		{sampleRate: 48000, frameCount: 10000, expected: 480},
		{sampleRate: 96000, frameCount: 10000, expected: 960},
		{sampleRate: 44100, frameCount: 10000, expected: 441},
		{sampleRate: 0, frameCount: 10000, expected: 480},
		{sampleRate: 48000, frameCount: 100, expected: 50},
	}
	for _, test := range tests {
		looper := supplier.NewLooper(supplier.NewAudioMaterial(ramp(1, test.frameCount), test.sampleRate))
		assert.Equal(t, test.expected, looper.FadeLength())
	}
}

func TestLooperUntilEndOfCycle(t *testing.T) {
	looper := supplier.NewLooper(supplier.NewAudioMaterial(ramp(1, 1000), 48000))
	looper.SetLoopBehavior(supplier.UntilEndOfCycle(1))

	dest := signal.EmptyFloat64(1, 700)
	start := 0
	written := 0
	for i := 0; i < 5; i++ {
		resp := looper.SupplyAudio(supplier.AudioRequest{StartFrame: start}, dest)
		written += resp.FramesWritten
		if resp.Exhausted() {
			break
		}
		start = resp.NextFrame
	}
	assert.Equal(t, 2000, written)
	assert.Equal(t, 1, looper.CycleAt(1999))
}

func TestLooperNotLooping(t *testing.T) {
	looper := supplier.NewLooper(supplier.NewAudioMaterial(ramp(1, 1000), 48000))
	dest := signal.EmptyFloat64(1, 700)
	resp := looper.SupplyAudio(supplier.AudioRequest{StartFrame: 700}, dest)
	assert.Equal(t, 300, resp.FramesWritten)
	assert.True(t, resp.Exhausted())

	// negative start is passed through with leading silence.
	dest = signal.EmptyFloat64(1, 10)
	resp = looper.SupplyAudio(supplier.AudioRequest{StartFrame: -4}, dest)
	assert.Equal(t, 10, resp.FramesWritten)
	assert.Equal(t, 6, resp.FramesConsumed)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1, 2, 3, 4, 5}, dest[0])
}

func TestLooperReset(t *testing.T) {
	tests := []struct {
		behavior supplier.LoopBehavior
		infinite bool
	}{
		{behavior: supplier.UntilEndOfCycle(0), infinite: false},
		{behavior: supplier.UntilEndOfCycle(3), infinite: true},
		{behavior: supplier.Infinitely(), infinite: true},
	}
	for _, test := range tests {
		looper := supplier.NewLooper(supplier.NewAudioMaterial(ramp(1, 10), 48000))
		looper.SetLoopBehavior(test.behavior)
		looper.Reset()
		assert.Equal(t, test.infinite, looper.LoopBehavior().IsInfinite())
	}
}

func TestLooperMidiSplice(t *testing.T) {
	noteOn := midi.NoteOn(0, 60, 100)
	noteOff := midi.NoteOff(0, 60)
	material := supplier.NewMidiMaterial([]supplier.Event{
		{Frame: 900, Message: noteOn},
		{Frame: 0, Message: noteOn},
		{Frame: 100, Message: noteOff},
		{Frame: 500, Message: noteOff},
	}, 1000, 48000)
	looper := infiniteLooper(material)

	events := supplier.NewEventList(16)
	resp := looper.SupplyMidi(supplier.MidiRequest{StartFrame: 700, DestFrameCount: 700}, events)
	assert.Equal(t, 700, resp.FramesWritten)
	assert.Equal(t, 700, resp.FramesConsumed)
	assert.Equal(t, 1400, resp.NextFrame)
	assert.Equal(t, 400, resp.NextInnerFrame)

	frames := []int{}
	for _, e := range events.Events() {
		frames = append(frames, e.Frame)
	}
	assert.Equal(t, []int{200, 300, 400}, frames)
	assert.Equal(t, noteOff, events.Events()[2].Message)
}
