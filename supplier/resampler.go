package supplier

import (
	"math"

	"github.com/dudk/clipengine/signal"
)

const (
	minRatio = 0.25
	maxRatio = 4.0
)

// Resampler converts inner material to destination sample rate and tempo
// with cubic interpolation. Requests and responses stay in the inner frame
// space, only the destination buffer is in destination frames.
type Resampler struct {
	inner       Supplier
	tempoFactor float64
	disabled    bool
	buf         signal.Float64
	scratch     signal.Float64
	sink        scaleSink
}

// NewResampler wraps the supplier.
func NewResampler(inner Supplier) *Resampler {
	return &Resampler{
		inner:       inner,
		tempoFactor: 1,
		scratch:     newScratch(),
	}
}

// SetTempoFactor sets playback speed. Factor 2 plays material twice as
// fast.
func (r *Resampler) SetTempoFactor(factor float64) {
	if factor <= 0 {
		factor = 1
	}
	r.tempoFactor = factor
}

// SetEnabled toggles the resampler. Disabled resampler delegates to inner
// supplier without conversion.
func (r *Resampler) SetEnabled(enabled bool) {
	r.disabled = !enabled
}

// TempoFactor returns current playback speed.
func (r *Resampler) TempoFactor() float64 {
	return r.tempoFactor
}

// Prepare allocates buffers for blocks up to maxFrames destination frames.
// It should be called outside of the real-time context.
func (r *Resampler) Prepare(numChannels, maxFrames int) {
	r.ensure(numChannels, int(math.Ceil(float64(maxFrames)*maxRatio))+4)
}

func (r *Resampler) ensure(numChannels, frames int) {
	if r.buf.NumChannels() >= numChannels && r.buf.Size() >= frames {
		return
	}
	if frames < r.buf.Size() {
		frames = r.buf.Size()
	}
	if numChannels < r.buf.NumChannels() {
		numChannels = r.buf.NumChannels()
	}
	r.buf = signal.EmptyFloat64(numChannels, frames)
}

// Ratio returns number of inner frames per destination frame.
func (r *Resampler) Ratio(destSampleRate float64) float64 {
	if r.disabled {
		return 1
	}
	ratio := ratioOf(r.inner.FrameRate(), destSampleRate, r.tempoFactor)
	if ratio < minRatio {
		return minRatio
	}
	if ratio > maxRatio {
		return maxRatio
	}
	return ratio
}

// SupplyAudio implements Supplier.
func (r *Resampler) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	ratio := r.Ratio(req.DestSampleRate)
	if ratio == 1 {
		return r.inner.SupplyAudio(req, dest)
	}
	n := dest.Size()
	if n == 0 {
		return Response{NextFrame: req.StartFrame}
	}
	// frame 0 of the buffer is one frame before the start.
	m := int(math.Ceil(float64(n)*ratio)) + 3
	r.ensure(dest.NumChannels(), m)
	src := view(&r.scratch, r.buf[:dest.NumChannels()], 0, m)
	src.Clear()
	innerResp := r.inner.SupplyAudio(AudioRequest{
		StartFrame:     req.StartFrame - 1,
		DestSampleRate: req.DestSampleRate,
	}, src)
	available := innerResp.FramesWritten - 1
	written := n
	if innerResp.FramesWritten < m {
		if available <= 0 {
			return Response{NextFrame: EndOfMaterial, NextInnerFrame: EndOfMaterial}
		}
		if limit := int(math.Ceil(float64(available) / ratio)); limit < written {
			written = limit
		}
	}
	for j := 0; j < written; j++ {
		x := float64(j) * ratio
		i := int(x)
		frac := x - float64(i)
		for c := range dest {
			s := src[c]
			dest[c][j] = cubicInterpolate(s[i], s[i+1], s[i+2], s[i+3], frac)
		}
	}
	consumed := roundFrames(float64(written) * ratio)
	if innerResp.FramesWritten < m && consumed > available {
		consumed = available
	}
	next := req.StartFrame + consumed
	resp := Response{
		FramesWritten:  written,
		FramesConsumed: consumed,
		NextFrame:      next,
	}
	if innerResp.FramesWritten < m && consumed >= available {
		resp.NextFrame, resp.NextInnerFrame = EndOfMaterial, EndOfMaterial
		return resp
	}
	if count := r.inner.FrameCount(); count > 0 && next >= 0 {
		resp.NextInnerFrame = checkNextInnerFrame(next%count, count)
	}
	return resp
}

// SupplyMidi implements Supplier. Event positions are scaled into
// destination frames.
func (r *Resampler) SupplyMidi(req MidiRequest, sink EventSink) Response {
	ratio := r.Ratio(req.DestSampleRate)
	if ratio == 1 {
		return r.inner.SupplyMidi(req, sink)
	}
	r.sink = scaleSink{
		target: sink,
		ratio:  ratio,
		limit:  req.DestFrameCount,
	}
	innerResp := r.inner.SupplyMidi(MidiRequest{
		StartFrame:     req.StartFrame,
		DestFrameCount: roundFrames(float64(req.DestFrameCount) * ratio),
		DestSampleRate: req.DestSampleRate,
	}, &r.sink)
	written := roundFrames(float64(innerResp.FramesWritten) / ratio)
	if written > req.DestFrameCount {
		written = req.DestFrameCount
	}
	innerResp.FramesWritten = written
	return innerResp
}

// FrameCount implements Supplier.
func (r *Resampler) FrameCount() int {
	return r.inner.FrameCount()
}

// FrameRate implements Supplier.
func (r *Resampler) FrameRate() float64 {
	return r.inner.FrameRate()
}

// NumChannels implements Supplier.
func (r *Resampler) NumChannels() int {
	return r.inner.NumChannels()
}

// Kind implements Supplier.
func (r *Resampler) Kind() Kind {
	return r.inner.Kind()
}

// cubicInterpolate is Catmull-Rom spline between y1 and y2, x in [0, 1).
func cubicInterpolate(y0, y1, y2, y3, x float64) float64 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return a0*x*x*x + a1*x*x + a2*x + a3
}
