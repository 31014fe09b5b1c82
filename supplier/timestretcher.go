package supplier

import (
	"math"

	"github.com/dudk/clipengine/signal"
)

const (
	grainSize = 2048
	grainHop  = grainSize / 2
)

// TimeStretcher changes tempo of inner material keeping its pitch. It
// overlaps Hann windowed grains read at stretched positions, while samples
// within a grain advance at the sample rate ratio only. Like Resampler,
// requests and responses stay in the inner frame space.
//
// Only one of TimeStretcher and Resampler should be enabled in a chain.
type TimeStretcher struct {
	inner       Supplier
	tempoFactor float64
	enabled     bool
	window      []float64
	buf         signal.Float64
	scratch     signal.Float64
	sink        scaleSink
}

// NewTimeStretcher wraps the supplier. It's disabled by default.
func NewTimeStretcher(inner Supplier) *TimeStretcher {
	window := make([]float64, grainSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/grainSize)
	}
	return &TimeStretcher{
		inner:       inner,
		tempoFactor: 1,
		window:      window,
		scratch:     newScratch(),
	}
}

// SetEnabled toggles the stretcher.
func (t *TimeStretcher) SetEnabled(enabled bool) {
	t.enabled = enabled
}

// SetTempoFactor sets playback speed. Factor 2 plays material twice as
// fast with the same pitch.
func (t *TimeStretcher) SetTempoFactor(factor float64) {
	if factor <= 0 {
		factor = 1
	}
	t.tempoFactor = factor
}

// Prepare allocates buffers for blocks up to maxFrames destination frames.
// It should be called outside of the real-time context.
func (t *TimeStretcher) Prepare(numChannels, maxFrames int) {
	t.ensure(numChannels, t.readLength(maxFrames, maxRatio, maxRatio))
}

func (t *TimeStretcher) ensure(numChannels, frames int) {
	if t.buf.NumChannels() >= numChannels && t.buf.Size() >= frames {
		return
	}
	if frames < t.buf.Size() {
		frames = t.buf.Size()
	}
	if numChannels < t.buf.NumChannels() {
		numChannels = t.buf.NumChannels()
	}
	t.buf = signal.EmptyFloat64(numChannels, frames)
}

// readLength is the upper bound of inner frames needed for n output frames.
func (t *TimeStretcher) readLength(n int, factor, rate float64) int {
	grains := n/grainHop + 3
	return int(math.Ceil(float64(grains*grainHop)*factor+grainSize*rate)) + 4
}

// ratios returns sample rate ratio and overall ratio of inner frames per
// output frame.
func (t *TimeStretcher) ratios(destSampleRate float64) (float64, float64) {
	rate := ratioOf(t.inner.FrameRate(), destSampleRate, 1)
	factor := rate * t.tempoFactor
	if factor < minRatio {
		factor = minRatio
	}
	if factor > maxRatio {
		factor = maxRatio
	}
	return rate, factor
}

// SupplyAudio implements Supplier.
func (t *TimeStretcher) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	if !t.enabled {
		return t.inner.SupplyAudio(req, dest)
	}
	rate, factor := t.ratios(req.DestSampleRate)
	if factor == 1 && rate == 1 {
		return t.inner.SupplyAudio(req, dest)
	}
	n := dest.Size()
	if n == 0 {
		return Response{NextFrame: req.StartFrame}
	}
	j0 := roundFrames(float64(req.StartFrame) / factor)
	kMin := floorDiv(j0, grainHop) - 1
	kMax := floorDiv(j0+n-1, grainHop)
	inStart := int(math.Floor(float64(kMin*grainHop)*factor)) - 1
	inEnd := int(math.Ceil(float64(kMax*grainHop)*factor+grainSize*rate)) + 3
	m := inEnd - inStart
	t.ensure(dest.NumChannels(), m)
	src := view(&t.scratch, t.buf[:dest.NumChannels()], 0, m)
	src.Clear()
	innerResp := t.inner.SupplyAudio(AudioRequest{
		StartFrame:     inStart,
		DestSampleRate: req.DestSampleRate,
	}, src)

	written := n
	exhausted := innerResp.FramesWritten < m
	if exhausted {
		available := inStart + innerResp.FramesWritten - req.StartFrame
		if available <= 0 {
			return Response{NextFrame: EndOfMaterial, NextInnerFrame: EndOfMaterial}
		}
		if limit := int(float64(available) / factor); limit < written {
			written = limit
		}
	}
	for i := 0; i < written; i++ {
		j := j0 + i
		k1 := floorDiv(j, grainHop)
		for c := range dest {
			dest[c][i] = 0
		}
		for k := k1 - 1; k <= k1; k++ {
			offset := j - k*grainHop
			if offset < 0 || offset >= grainSize {
				continue
			}
			w := t.window[offset]
			pos := float64(k*grainHop)*factor + float64(offset)*rate - float64(inStart)
			idx := int(math.Floor(pos))
			if idx < 1 || idx+2 >= m {
				continue
			}
			frac := pos - float64(idx)
			for c := range dest {
				s := src[c]
				dest[c][i] += w * cubicInterpolate(s[idx-1], s[idx], s[idx+1], s[idx+2], frac)
			}
		}
	}
	consumed := roundFrames(float64(written) * factor)
	next := req.StartFrame + consumed
	resp := Response{
		FramesWritten:  written,
		FramesConsumed: consumed,
		NextFrame:      next,
	}
	if exhausted && next >= inStart+innerResp.FramesWritten {
		resp.NextFrame, resp.NextInnerFrame = EndOfMaterial, EndOfMaterial
		return resp
	}
	if count := t.inner.FrameCount(); count > 0 && next >= 0 {
		resp.NextInnerFrame = checkNextInnerFrame(next%count, count)
	}
	return resp
}

// SupplyMidi implements Supplier. Events keep their timing relative to the
// stretched material.
func (t *TimeStretcher) SupplyMidi(req MidiRequest, sink EventSink) Response {
	if !t.enabled {
		return t.inner.SupplyMidi(req, sink)
	}
	_, factor := t.ratios(req.DestSampleRate)
	if factor == 1 {
		return t.inner.SupplyMidi(req, sink)
	}
	t.sink = scaleSink{
		target: sink,
		ratio:  factor,
		limit:  req.DestFrameCount,
	}
	innerResp := t.inner.SupplyMidi(MidiRequest{
		StartFrame:     req.StartFrame,
		DestFrameCount: roundFrames(float64(req.DestFrameCount) * factor),
		DestSampleRate: req.DestSampleRate,
	}, &t.sink)
	written := roundFrames(float64(innerResp.FramesWritten) / factor)
	if written > req.DestFrameCount {
		written = req.DestFrameCount
	}
	innerResp.FramesWritten = written
	return innerResp
}

// FrameCount implements Supplier.
func (t *TimeStretcher) FrameCount() int {
	return t.inner.FrameCount()
}

// FrameRate implements Supplier.
func (t *TimeStretcher) FrameRate() float64 {
	return t.inner.FrameRate()
}

// NumChannels implements Supplier.
func (t *TimeStretcher) NumChannels() int {
	return t.inner.NumChannels()
}

// Kind implements Supplier.
func (t *TimeStretcher) Kind() Kind {
	return t.inner.Kind()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
