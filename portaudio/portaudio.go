// Package portaudio plays columns through the default audio device.
package portaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/dudk/clipengine"
	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/timeline"
)

type (
	// Host is a playback destination which calls scheduled processors
	// from the portaudio stream callback. Scheduling is safe for
	// concurrent use, the callback never waits for it.
	Host struct {
		numChannels int
		numInputs   int
		sampleRate  float64
		frames      int
		timeline    timeline.Timeline

		mu        sync.Mutex
		next      clipengine.PlaybackHandle
		playbacks atomic.Pointer[[]playback]
		stream    *portaudio.Stream

		output signal.Float64
		input  signal.Float64
		mix    signal.Float64
	}

	playback struct {
		handle    clipengine.PlaybackHandle
		processor clipengine.Processor
	}

	// advancer is a timeline driven by processed frames.
	advancer interface {
		Advance(frames int)
	}
)

// NewHost returns a host for stream of the format. Timeline provides
// moments for every callback. If it implements Advance(int), it's
// advanced by processed frames.
func NewHost(tl timeline.Timeline, sampleRate float64, frames, numChannels, numInputs int) *Host {
	h := Host{
		numChannels: numChannels,
		numInputs:   numInputs,
		sampleRate:  sampleRate,
		frames:      frames,
		timeline:    tl,
		output:      signal.EmptyFloat64(numChannels, frames),
		mix:         signal.EmptyFloat64(numChannels, frames),
	}
	if numInputs > 0 {
		h.input = signal.EmptyFloat64(numInputs, frames)
	}
	h.playbacks.Store(&[]playback{})
	return &h
}

// Start initializes portaudio and starts the default stream.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(h.numInputs, h.numChannels, h.sampleRate, h.frames, h.process)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err = stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	h.stream = stream
	return nil
}

// Close stops the stream and terminates portaudio.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stream == nil {
		return nil
	}
	err := h.stream.Stop()
	if err != nil {
		return err
	}
	err = h.stream.Close()
	if err != nil {
		return err
	}
	h.stream = nil
	return portaudio.Terminate()
}

// SchedulePlayback implements clipengine.Host.
func (h *Host) SchedulePlayback(p clipengine.Processor) (clipengine.PlaybackHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	current := *h.playbacks.Load()
	playbacks := make([]playback, len(current), len(current)+1)
	copy(playbacks, current)
	playbacks = append(playbacks, playback{handle: h.next, processor: p})
	h.playbacks.Store(&playbacks)
	return h.next, nil
}

// CancelPlayback implements clipengine.Host.
func (h *Host) CancelPlayback(handle clipengine.PlaybackHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := *h.playbacks.Load()
	playbacks := make([]playback, 0, len(current))
	for _, p := range current {
		if p.handle != handle {
			playbacks = append(playbacks, p)
		}
	}
	if len(playbacks) == len(current) {
		return fmt.Errorf("unknown playback %d", handle)
	}
	h.playbacks.Store(&playbacks)
	return nil
}

// process is the stream callback. It mixes outputs of all scheduled
// processors into interleaved out buffer.
func (h *Host) process(in, out []float32) {
	frames := len(out) / h.numChannels
	if frames > h.frames {
		frames = h.frames
	}
	m := h.timeline.CurrentMoment()
	if h.input != nil {
		h.input.Deinterleave32(in)
	}
	h.mix.Clear()
	for _, p := range *h.playbacks.Load() {
		args := clipengine.ProcessArgs{
			Frames: frames,
			Moment: m,
			Output: h.output,
			Input:  h.input,
		}
		p.processor.Process(&args)
		h.mix.MixFrom(h.output)
	}
	h.mix.Interleave32(out)
	if a, ok := h.timeline.(advancer); ok {
		a.Advance(frames)
	}
}
