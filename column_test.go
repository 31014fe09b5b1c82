package clipengine_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/goleak"

	"github.com/dudk/clipengine"
	"github.com/dudk/clipengine/mock"
	"github.com/dudk/clipengine/preset"
	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/supplier"
	"github.com/dudk/clipengine/timeline"
)

const (
	sampleRate = 48000.0
	blockSize  = 64
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newColumn(t *testing.T, options ...clipengine.Option) *clipengine.Column {
	t.Helper()
	options = append([]clipengine.Option{
		clipengine.WithFormat(2, sampleRate, blockSize),
		clipengine.WithAcquirer(&mock.Acquirer{Limit: 4 * int(sampleRate), Value: 0.5, SampleRate: sampleRate}),
	}, options...)
	c, err := clipengine.NewColumn(options...)
	require.Nil(t, err)
	return c
}

func moment(frame int) timeline.Moment {
	return timeline.Moment{
		Cursor:      float64(frame) / sampleRate,
		Tempo:       120,
		BeatsPerBar: 4,
		SampleRate:  sampleRate,
		Playing:     true,
	}
}

func filter(events []clipengine.Event, kind clipengine.EventKind) []clipengine.Event {
	var result []clipengine.Event
	for _, e := range events {
		if e.Kind == kind {
			result = append(result, e)
		}
	}
	return result
}

func states(events []clipengine.Event, index int) []clipengine.PlayState {
	var result []clipengine.PlayState
	for _, e := range filter(events, clipengine.PlayStateChanged) {
		if e.Index == index {
			result = append(result, e.State)
		}
	}
	return result
}

func TestQuantizedPlay(t *testing.T) {
	steady := timeline.NewSteady(sampleRate, 120, 4)
	steady.Play()
	steady.SeekBar(1.5)
	c := newColumn(t, clipengine.WithTimeline(steady))
	require.Nil(t, c.FillSlot(0, clipengine.ClipSpec{Looped: true}))
	bar := timeline.StartQuantized(timeline.Bar)
	require.Nil(t, c.PlayClip(0, &bar))

	sink := &mock.Sink{Frames: blockSize}
	playingAt := -1
	for tick := 0; tick < 800 && playingAt < 0; tick++ {
		cursor := steady.CurrentMoment().Cursor
		sink.Process(c, timeline.Moment{})
		steady.Advance(blockSize)
		for _, state := range states(c.Poll(), 0) {
			switch state {
			case clipengine.ScheduledForPlay:
				assert.Equal(t, 0, tick)
			case clipengine.Playing:
				assert.GreaterOrEqual(t, cursor, 4.0)
				playingAt = tick
			}
		}
	}
	// 1.5 bars at 120 bpm is 3 seconds, next bar is 48000 frames later.
	assert.Equal(t, 750, playingAt)
	info, ok := c.Slot(0)
	assert.True(t, ok)
	assert.Equal(t, clipengine.Playing, info.State)

	out := sink.Buffer()
	assert.Equal(t, 0.0, out[0][750*blockSize-1])
	assert.Equal(t, 0.5, out[0][750*blockSize])
	assert.Equal(t, 0.5, out[1][751*blockSize-1])
}

func TestTransportStopResume(t *testing.T) {
	steady := timeline.NewSteady(sampleRate, 120, 4)
	steady.Play()
	steady.SeekBar(0.99)
	c := newColumn(t, clipengine.WithTimeline(steady), clipengine.WithTransport(steady))
	require.Nil(t, c.FillSlot(0, clipengine.ClipSpec{Looped: true}))
	require.Nil(t, c.PlayClip(0, nil))

	sink := &mock.Sink{Frames: blockSize, Discard: true}
	tick := func() []clipengine.Event {
		sink.Process(c, timeline.Moment{})
		steady.Advance(blockSize)
		return c.Poll()
	}
	var events []clipengine.Event
	for i := 0; i < 20; i++ {
		events = append(events, tick()...)
	}
	assert.Equal(t, []clipengine.PlayState{clipengine.ScheduledForPlay, clipengine.Playing}, states(events, 0))

	steady.Stop()
	assert.Equal(t, []clipengine.PlayState{clipengine.Stopped}, states(tick(), 0))

	steady.Play()
	assert.Equal(t, []clipengine.PlayState{clipengine.ScheduledForPlay}, states(tick(), 0))
	// next bar is 2 seconds away.
	for i := 0; i < 10; i++ {
		assert.Empty(t, states(tick(), 0))
	}
	info, _ := c.Slot(0)
	assert.Equal(t, clipengine.ScheduledForPlay, info.State)

	// explicit stop isn't resumed by transport.
	require.Nil(t, c.StopClip(0, &timeline.StopImmediately))
	assert.Equal(t, []clipengine.PlayState{clipengine.Stopped}, states(tick(), 0))
	steady.Stop()
	tick()
	steady.Play()
	assert.Empty(t, states(tick(), 0))
}

// transportColumn returns a column following the steady timeline and a
// tick which processes one block and advances the timeline.
func transportColumn(t *testing.T, steady *timeline.Steady) (*clipengine.Column, func() []clipengine.Event) {
	t.Helper()
	c := newColumn(t, clipengine.WithTimeline(steady), clipengine.WithTransport(steady))
	require.Nil(t, c.FillSlot(0, clipengine.ClipSpec{Looped: true}))
	sink := &mock.Sink{Frames: blockSize, Discard: true}
	return c, func() []clipengine.Event {
		sink.Process(c, timeline.Moment{})
		steady.Advance(blockSize)
		return c.Poll()
	}
}

func TestCursorJumpRetriggers(t *testing.T) {
	steady := timeline.NewSteady(sampleRate, 120, 4)
	steady.Play()
	steady.SeekBar(0.99)
	c, tick := transportColumn(t, steady)
	bar := timeline.StartQuantized(timeline.Bar)
	require.Nil(t, c.PlayClip(0, &bar))
	// playing for one second after the bar.
	for i := 0; i < 765; i++ {
		tick()
	}
	info, _ := c.Slot(0)
	require.Equal(t, clipengine.Playing, info.State)
	assert.InDelta(t, 0.25, info.Pos, 0.02)

	// next bar is 1.5 seconds after the jump.
	steady.SeekBar(3.25)
	var events []clipengine.Event
	for i := 0; i < 1100; i++ {
		events = append(events, tick()...)
	}
	assert.Empty(t, states(events, 0))
	info, _ = c.Slot(0)
	assert.Greater(t, info.Pos, 0.5)

	for i := 0; i < 100; i++ {
		events = append(events, tick()...)
	}
	assert.Empty(t, states(events, 0))
	info, _ = c.Slot(0)
	assert.Equal(t, clipengine.Playing, info.State)
	assert.Less(t, info.Pos, 0.1)
}

func TestCursorJumpKeepsStop(t *testing.T) {
	steady := timeline.NewSteady(sampleRate, 120, 4)
	steady.Play()
	steady.SeekBar(0.99)
	c, tick := transportColumn(t, steady)
	bar := timeline.StartQuantized(timeline.Bar)
	require.Nil(t, c.PlayClip(0, &bar))
	var events []clipengine.Event
	for i := 0; i < 20; i++ {
		events = append(events, tick()...)
	}
	require.Equal(t, []clipengine.PlayState{clipengine.ScheduledForPlay, clipengine.Playing}, states(events, 0))

	stop := timeline.StopQuantized(timeline.Bar)
	require.Nil(t, c.StopClip(0, &stop))
	require.Equal(t, []clipengine.PlayState{clipengine.ScheduledForStop}, states(tick(), 0))

	// stop moves from 4 to 6 seconds.
	steady.SeekBar(2.5)
	events = nil
	for i := 0; i < 700; i++ {
		events = append(events, tick()...)
	}
	assert.Empty(t, states(events, 0))
	info, _ := c.Slot(0)
	assert.Equal(t, clipengine.ScheduledForStop, info.State)

	for i := 0; i < 3000; i++ {
		events = append(events, tick()...)
	}
	assert.Equal(t, []clipengine.PlayState{clipengine.Stopped}, states(events, 0))
	info, _ = c.Slot(0)
	assert.Equal(t, clipengine.Stopped, info.State)
}

func TestTransportStopAfterPause(t *testing.T) {
	steady := timeline.NewSteady(sampleRate, 120, 4)
	steady.Play()
	steady.SeekBar(0.99)
	c, tick := transportColumn(t, steady)
	bar := timeline.StartQuantized(timeline.Bar)
	require.Nil(t, c.PlayClip(0, &bar))
	var events []clipengine.Event
	for i := 0; i < 20; i++ {
		events = append(events, tick()...)
	}
	require.Equal(t, []clipengine.PlayState{clipengine.ScheduledForPlay, clipengine.Playing}, states(events, 0))

	steady.Pause()
	assert.Empty(t, states(tick(), 0))
	steady.Stop()
	assert.Equal(t, []clipengine.PlayState{clipengine.Stopped}, states(tick(), 0))

	// stop after pause isn't memorized.
	steady.Play()
	events = nil
	for i := 0; i < 5; i++ {
		events = append(events, tick()...)
	}
	assert.Empty(t, states(events, 0))
}

func TestTransportStartStopsPlayingClip(t *testing.T) {
	steady := timeline.NewSteady(sampleRate, 120, 4)
	c, tick := transportColumn(t, steady)
	require.Nil(t, c.PlayClip(0, &timeline.StartImmediately))
	require.Equal(t, []clipengine.PlayState{clipengine.Playing}, states(tick(), 0))

	steady.Play()
	assert.Equal(t, []clipengine.PlayState{clipengine.Stopped}, states(tick(), 0))
	steady.Stop()
	tick()
	steady.Play()
	var events []clipengine.Event
	for i := 0; i < 5; i++ {
		events = append(events, tick()...)
	}
	assert.Empty(t, states(events, 0))
	info, _ := c.Slot(0)
	assert.Equal(t, clipengine.Stopped, info.State)
}

func TestCommandBackpressure(t *testing.T) {
	c := newColumn(t, clipengine.WithCommandCapacity(4))
	material := &mock.Material{Limit: int(sampleRate), Value: 0.5, SampleRate: sampleRate}
	require.Nil(t, c.FillSlotWithSupplier(0, clipengine.ClipSpec{Looped: true}, material, 0))
	require.Nil(t, c.SetClipVolume(0, -20))
	require.Nil(t, c.SetClipVolume(0, -6))
	require.Nil(t, c.PlayClip(0, &timeline.StartImmediately))

	err := c.SetClipVolume(0, 0)
	assert.True(t, errors.Is(err, clipengine.ErrCommandQueueFull))
	assert.True(t, clipengine.IsRetryable(err))
	var slotErr *clipengine.SlotError
	assert.True(t, errors.As(err, &slotErr))
	assert.Equal(t, 0, slotErr.Index)

	out := signal.EmptyFloat64(2, blockSize)
	c.Process(&clipengine.ProcessArgs{Moment: moment(0), Output: out})
	assert.InDelta(t, 0.5*supplier.Gain(-6), out[0][10], 1e-9)
	assert.Equal(t, []clipengine.PlayState{clipengine.Playing}, states(c.Poll(), 0))

	// queue is drained, so retry succeeds.
	assert.Nil(t, c.SetClipVolume(0, 0))
	c.Process(&clipengine.ProcessArgs{Moment: moment(blockSize), Output: out})
	assert.InDelta(t, 0.5, out[0][10], 1e-9)
}

func TestEventDelivery(t *testing.T) {
	c := newColumn(t, clipengine.WithEventCapacity(2))
	for i := 0; i < 4; i++ {
		require.Nil(t, c.FillSlot(i, clipengine.ClipSpec{Looped: true}))
		require.Nil(t, c.PlayClip(i, &timeline.StartImmediately))
	}
	frame := 0
	tick := func() []clipengine.Event {
		c.Process(&clipengine.ProcessArgs{Frames: blockSize, Moment: moment(frame)})
		frame += blockSize
		return c.Poll()
	}

	events := tick()
	assert.Equal(t, 2, len(events))
	assert.Equal(t, []int{0, 1}, indices(events))
	assert.Equal(t, 40*time.Millisecond, c.PollInterval())

	// critical events are delivered in order.
	events = tick()
	assert.Equal(t, []int{2, 3}, indices(filter(events, clipengine.PlayStateChanged)))
	assert.Equal(t, 80*time.Millisecond, c.PollInterval())

	// positions of slots 2 and 3 are coalesced, but not forever.
	stale := 0
	for ; stale < 30; stale++ {
		if len(positions(tick(), 3)) > 0 {
			break
		}
	}
	assert.Less(t, stale, 20)

	for i := 0; i < 4; i++ {
		require.Nil(t, c.StopClip(i, &timeline.StopImmediately))
	}
	for i := 0; i < 50; i++ {
		tick()
	}
	for i := 0; i < 4; i++ {
		info, _ := c.Slot(i)
		assert.Equal(t, clipengine.Stopped, info.State)
	}
	assert.Equal(t, 20*time.Millisecond, c.PollInterval())
}

func indices(events []clipengine.Event) []int {
	var result []int
	for _, e := range events {
		result = append(result, e.Index)
	}
	return result
}

func positions(events []clipengine.Event, index int) []float64 {
	var result []float64
	for _, e := range filter(events, clipengine.PositionChanged) {
		if e.Index == index {
			result = append(result, e.Pos)
		}
	}
	return result
}

func TestErrors(t *testing.T) {
	acquirer := &mock.Acquirer{Limit: int(sampleRate), SampleRate: sampleRate}
	c := newColumn(t, clipengine.WithAcquirer(acquirer))

	err := c.PlayClip(0, nil)
	assert.True(t, errors.Is(err, clipengine.ErrSlotEmpty))
	for _, index := range []int{-1, clipengine.MaxSlots} {
		err = c.FillSlot(index, clipengine.ClipSpec{})
		assert.True(t, errors.Is(err, clipengine.ErrSlotIndexOutOfRange))
		assert.False(t, clipengine.IsRetryable(err))
	}

	acquirer.ErrorOnCall = fmt.Errorf("%w: missing.wav", source.ErrUnavailable)
	err = c.FillSlot(1, clipengine.ClipSpec{Source: source.Descriptor{Path: "missing.wav"}})
	assert.True(t, errors.Is(err, source.ErrUnavailable))
	_, ok := c.Slot(1)
	assert.False(t, ok)
	acquirer.ErrorOnCall = nil

	invalid := timeline.StartQuantized(timeline.EvenQuantization{Numerator: 3, Denominator: 4})
	err = c.FillSlot(1, clipengine.ClipSpec{StartTiming: &invalid})
	assert.True(t, errors.Is(err, clipengine.ErrInvalidSettings))

	require.Nil(t, c.FillSlot(1, clipengine.ClipSpec{}))
	err = c.StartRecording(1, clipengine.RecordBehavior{Mode: supplier.RecordMidiOverdub})
	assert.True(t, errors.Is(err, clipengine.ErrNotRecordable))
	err = c.StartRecording(2, clipengine.RecordBehavior{Mode: supplier.RecordMidiReplace})
	assert.True(t, errors.Is(err, clipengine.ErrNotRecordable))

	// second recording is rejected by the real-time side.
	behavior := clipengine.RecordBehavior{Mode: supplier.RecordNormal, Kind: supplier.Audio}
	require.Nil(t, c.StartRecording(1, behavior))
	require.Nil(t, c.StartRecording(1, behavior))
	c.Process(&clipengine.ProcessArgs{Frames: blockSize, Moment: moment(0)})
	failed := filter(c.Poll(), clipengine.ErrorOccurred)
	require.Equal(t, 1, len(failed))
	assert.Equal(t, 1, failed[0].Index)
	assert.True(t, errors.Is(failed[0].Err, supplier.ErrRecording))

	settings := clipengine.DefaultColumnSettings()
	settings.Record.Enabled = false
	require.Nil(t, c.UpdateSettings(settings))
	err = c.StartRecording(3, behavior)
	assert.True(t, errors.Is(err, clipengine.ErrNotRecordable))

	settings.StartTiming = invalid
	assert.True(t, errors.Is(c.UpdateSettings(settings), clipengine.ErrInvalidSettings))
	_, err = clipengine.NewColumn(clipengine.WithEventCapacity(0))
	assert.True(t, errors.Is(err, clipengine.ErrInvalidSettings))
}

func recordSettings() clipengine.ColumnSettings {
	settings := clipengine.DefaultColumnSettings()
	settings.Record.StartTiming = timeline.StartImmediately
	settings.Record.MaxLength = time.Second
	return settings
}

func TestRecordAudio(t *testing.T) {
	c := newColumn(t, clipengine.WithSettings(recordSettings()))
	require.Nil(t, c.StartRecording(0, clipengine.RecordBehavior{Mode: supplier.RecordNormal, Kind: supplier.Audio}))

	in := signal.EmptyFloat64(2, blockSize)
	for i := range in {
		for j := range in[i] {
			in[i][j] = 0.25
		}
	}
	out := signal.EmptyFloat64(2, blockSize)
	frame := 0
	tick := func() []clipengine.Event {
		c.Process(&clipengine.ProcessArgs{Moment: moment(frame), Output: out, Input: in})
		frame += blockSize
		return c.Poll()
	}
	var events []clipengine.Event
	for i := 0; i < 3; i++ {
		events = append(events, tick()...)
	}
	assert.Equal(t, []clipengine.PlayState{clipengine.Recording}, states(events, 0))
	info, ok := c.Slot(0)
	require.True(t, ok)
	assert.True(t, info.Recording)
	assert.Equal(t, 0.0, out[0][10])

	require.Nil(t, c.StopClip(0, &timeline.StopImmediately))
	events = tick()
	finished := filter(events, clipengine.RecordingFinished)
	require.Equal(t, 1, len(finished))
	assert.Equal(t, 3*blockSize, finished[0].Outcome.FrameCount)
	assert.Equal(t, info.ClipID, finished[0].ClipID)
	assert.Equal(t, []clipengine.PlayState{clipengine.Playing}, states(events, 0))
	assert.Equal(t, 0.25, out[0][10])

	info, _ = c.Slot(0)
	assert.False(t, info.Recording)
	assert.Equal(t, clipengine.Playing, info.State)
	assert.Equal(t, 3*blockSize, info.FrameCount)
	assert.Equal(t, supplier.Audio, info.Kind)
	assert.True(t, info.Spec.Looped)

	// audio recording without recording dir can't be saved.
	assert.Empty(t, c.Save().Slots)
}

func TestRecordMidi(t *testing.T) {
	c := newColumn(t, clipengine.WithSettings(recordSettings()))
	require.Nil(t, c.StartRecording(1, clipengine.RecordBehavior{Mode: supplier.RecordNormal, Kind: supplier.Midi}))

	frame := 0
	tick := func(input []supplier.Event) []clipengine.Event {
		c.Process(&clipengine.ProcessArgs{Frames: blockSize, Moment: moment(frame), MidiInput: input})
		frame += blockSize
		return c.Poll()
	}
	tick([]supplier.Event{{Frame: 5, Message: midi.NoteOn(0, 60, 100)}})
	tick([]supplier.Event{{Frame: 7, Message: midi.NoteOff(0, 60)}})
	require.Nil(t, c.StopClip(1, nil))
	events := tick(nil)
	require.Equal(t, 1, len(filter(events, clipengine.RecordingFinished)))

	info, ok := c.Slot(1)
	require.True(t, ok)
	assert.Equal(t, supplier.Midi, info.Kind)
	assert.Equal(t, 2*blockSize, info.FrameCount)
	assert.True(t, info.Spec.Source.IsInline())
	require.Equal(t, 2, len(info.Spec.Source.Events))
	assert.Equal(t, 5, info.Spec.Source.Events[0].Frame)
	assert.Equal(t, blockSize+7, info.Spec.Source.Events[1].Frame)

	saved := c.Save()
	require.Equal(t, 1, len(saved.Slots))
	assert.Equal(t, 1, saved.Slots[0].Index)
	assert.Equal(t, 2*blockSize, saved.Slots[0].Clip.Source.FrameCount)
}

func TestCancelScheduledRecording(t *testing.T) {
	c := newColumn(t)
	require.Nil(t, c.StartRecording(0, clipengine.RecordBehavior{Mode: supplier.RecordNormal, Kind: supplier.Audio}))
	c.Process(&clipengine.ProcessArgs{Frames: blockSize, Moment: moment(0)})
	assert.Equal(t, []clipengine.PlayState{clipengine.ScheduledForRecord}, states(c.Poll(), 0))
	_, ok := c.Slot(0)
	assert.True(t, ok)

	require.Nil(t, c.StopClip(0, nil))
	c.Process(&clipengine.ProcessArgs{Frames: blockSize, Moment: moment(blockSize)})
	events := c.Poll()
	assert.Equal(t, []clipengine.PlayState{clipengine.Stopped}, states(events, 0))
	assert.Empty(t, filter(events, clipengine.RecordingFinished))
	_, ok = c.Slot(0)
	assert.False(t, ok)
	assert.True(t, errors.Is(c.PlayClip(0, nil), clipengine.ErrSlotEmpty))
}

func TestLoadSave(t *testing.T) {
	c := newColumn(t)
	loopID, oneID := xid.New(), xid.New()
	p, err := preset.Unmarshal([]byte(fmt.Sprintf(`
settings:
  start_timing: 1/4
  stop_timing: until-end-of-clip
  tempo_adaption: varispeed
  record:
    start_timing: 1/1
    length: 2/1
    play_after: true
    max_length: 30
slots:
  - index: 3
    clip:
      id: %s
      source:
        path: loop.wav
      looped: true
      volume: -3
      section:
        start: 100
        length: 1000
  - index: 0
    clip:
      id: %s
      source:
        path: one.wav
      looped: false
      start_timing: immediately
`, loopID, oneID)))
	require.Nil(t, err)
	require.Nil(t, c.Load(p))

	settings := c.Settings()
	assert.Equal(t, timeline.StartQuantized(timeline.EvenQuantization{Numerator: 1, Denominator: 4}), settings.StartTiming)
	assert.Equal(t, timeline.StopUntilEndOfClip, settings.StopTiming)
	assert.Equal(t, supplier.TempoVariSpeed, settings.TempoAdaption)
	assert.Equal(t, 30*time.Second, settings.Record.MaxLength)
	assert.Equal(t, timeline.EvenQuantization{Numerator: 2, Denominator: 1}, settings.Record.Length)

	info, ok := c.Slot(3)
	require.True(t, ok)
	assert.Equal(t, loopID, info.ClipID)
	assert.Equal(t, supplier.Bounds{Start: 100, Length: 1000}, info.Spec.Bounds)
	info, ok = c.Slot(0)
	require.True(t, ok)
	require.NotNil(t, info.Spec.StartTiming)
	assert.Equal(t, timeline.StartImmediately, *info.Spec.StartTiming)

	saved := c.Save()
	p.Sort()
	assert.Equal(t, p.Slots, saved.Slots)
	assert.Equal(t, p.Settings, saved.Settings)

	// slots missing in preset are cleared.
	require.Nil(t, c.Load(preset.Column{Slots: p.Slots[:1]}))
	_, ok = c.Slot(3)
	assert.False(t, ok)
	assert.False(t, c.Settings().Record.Enabled)
}

func TestLoadFailedSlot(t *testing.T) {
	acquirer := &mock.Acquirer{Limit: int(sampleRate), Value: 0.5, SampleRate: sampleRate}
	c := newColumn(t, clipengine.WithAcquirer(acquirer))
	material := &mock.Material{Limit: int(sampleRate), Value: 0.5, SampleRate: sampleRate}
	require.Nil(t, c.FillSlotWithSupplier(0, clipengine.ClipSpec{Looped: true}, material, 0))
	require.Nil(t, c.PlayClip(0, &timeline.StartImmediately))

	acquirer.ErrorOnCall = fmt.Errorf("%w: missing.wav", source.ErrUnavailable)
	err := c.Load(preset.Column{Slots: []preset.Slot{
		{Index: 0, Clip: preset.Clip{Source: source.Descriptor{Path: "missing.wav"}}},
	}})
	assert.True(t, errors.Is(err, source.ErrUnavailable))
	_, ok := c.Slot(0)
	assert.False(t, ok)

	out := signal.EmptyFloat64(2, blockSize)
	c.Process(&clipengine.ProcessArgs{Moment: moment(0), Output: out})
	assert.Equal(t, 0.0, out[0][10])
	assert.True(t, errors.Is(c.PlayClip(0, nil), clipengine.ErrSlotEmpty))
}
