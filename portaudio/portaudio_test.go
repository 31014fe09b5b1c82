//go:build portaudio

package portaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/clipengine"
	"github.com/dudk/clipengine/mock"
	"github.com/dudk/clipengine/timeline"
)

const (
	sampleRate = 44100
	frames     = 512
)

type constant float64

func (c constant) Process(args *clipengine.ProcessArgs) {
	for i := range args.Output {
		for j := 0; j < args.Frames; j++ {
			args.Output[i][j] = float64(c)
		}
	}
}

func TestCallback(t *testing.T) {
	tl := timeline.NewSteady(sampleRate, 120, 4)
	tl.Play()
	h := NewHost(tl, sampleRate, frames, 2, 0)

	first, err := h.SchedulePlayback(constant(0.25))
	assert.Nil(t, err)
	second, err := h.SchedulePlayback(constant(0.5))
	assert.Nil(t, err)
	assert.NotEqual(t, first, second)

	out := make([]float32, frames*2)
	h.process(nil, out)
	assert.Equal(t, float32(0.75), out[0])
	assert.Equal(t, float32(0.75), out[len(out)-1])
	assert.Equal(t, float64(frames)/sampleRate, tl.CurrentMoment().Cursor)

	assert.Nil(t, h.CancelPlayback(first))
	assert.NotNil(t, h.CancelPlayback(first))
	h.process(nil, out)
	assert.Equal(t, float32(0.5), out[0])
}

func TestPlayColumn(t *testing.T) {
	tl := timeline.NewSteady(sampleRate, 120, 4)
	h := NewHost(tl, sampleRate, frames, 2, 0)
	c, err := clipengine.NewColumn(
		clipengine.WithFormat(2, sampleRate, frames),
		clipengine.WithTimeline(tl),
		clipengine.WithTransport(tl),
		clipengine.WithAcquirer(&mock.Acquirer{Limit: sampleRate, Value: 0.5, SampleRate: sampleRate}),
	)
	assert.Nil(t, err)
	assert.Nil(t, c.FillSlot(0, clipengine.ClipSpec{Looped: true}))
	assert.Nil(t, c.PlayClip(0, &timeline.StartImmediately))

	assert.Nil(t, h.Start())
	assert.Nil(t, c.Activate(h))
	tl.Play()
	for i := 0; i < 10; i++ {
		c.Poll()
	}
	assert.Nil(t, c.Deactivate())
	assert.Nil(t, h.Close())
}
