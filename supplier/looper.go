package supplier

import (
	"time"

	"github.com/dudk/clipengine/signal"
)

const (
	// FadeDuration is the length of loop boundary fades.
	FadeDuration = 10 * time.Millisecond
	// defaultFadeLength is used when the material has no frame rate.
	defaultFadeLength = 480
)

// LoopBehavior defines how many cycles the looper repeats the material.
type LoopBehavior struct {
	infinite  bool
	lastCycle int
}

// Infinitely repeats material until behavior is changed.
func Infinitely() LoopBehavior {
	return LoopBehavior{infinite: true}
}

// UntilEndOfCycle repeats material until the end of cycle n. Zero means
// not looping.
func UntilEndOfCycle(n int) LoopBehavior {
	if n < 0 {
		n = 0
	}
	return LoopBehavior{lastCycle: n}
}

// IsInfinite returns true if looping never ends.
func (b LoopBehavior) IsInfinite() bool {
	return b.infinite
}

// LastCycle returns last cycle index at which looping is permitted.
func (b LoopBehavior) LastCycle() int {
	return b.lastCycle
}

// Looper repeats inner material seamlessly. Requests beyond the material
// end are folded back into it and frames reported in responses keep
// growing across cycles.
type Looper struct {
	inner        Supplier
	behavior     LoopBehavior
	fadesEnabled bool
	scratch      signal.Float64
}

// NewLooper wraps the supplier. It doesn't loop until behavior is set.
func NewLooper(inner Supplier) *Looper {
	return &Looper{
		inner:   inner,
		scratch: newScratch(),
	}
}

// SetLoopBehavior sets the loop behavior.
func (l *Looper) SetLoopBehavior(b LoopBehavior) {
	l.behavior = b
}

// LoopBehavior returns current loop behavior.
func (l *Looper) LoopBehavior() LoopBehavior {
	return l.behavior
}

// SetFadesEnabled toggles fades at the loop boundary.
func (l *Looper) SetFadesEnabled(enabled bool) {
	l.fadesEnabled = enabled
}

// Reset turns pending "loop until end of cycle" into infinite loop.
func (l *Looper) Reset() {
	if !l.behavior.infinite && l.behavior.lastCycle > 0 {
		l.behavior = Infinitely()
	}
}

// CycleAt returns cycle index of the frame.
func (l *Looper) CycleAt(frame int) int {
	count := l.inner.FrameCount()
	if count == 0 || frame < 0 {
		return 0
	}
	return frame / count
}

// FadeLength returns number of frames of loop boundary fades. It's
// FadeDuration at material frame rate, but no longer than half of it.
func (l *Looper) FadeLength() int {
	length := defaultFadeLength
	if rate := l.inner.FrameRate(); rate > 0 {
		length = signal.FramesOf(rate, FadeDuration)
	}
	if half := l.inner.FrameCount() / 2; length > half {
		length = half
	}
	return length
}

func (l *Looper) relevant(start int) bool {
	if start < 0 || l.inner.FrameCount() == 0 {
		return false
	}
	if l.behavior.infinite {
		return true
	}
	return l.behavior.lastCycle > 0 && l.CycleAt(start) <= l.behavior.lastCycle
}

func (l *Looper) mayWrap(cycle int) bool {
	return l.behavior.infinite || cycle < l.behavior.lastCycle
}

// SupplyAudio implements Supplier.
func (l *Looper) SupplyAudio(req AudioRequest, dest signal.Float64) Response {
	if !l.relevant(req.StartFrame) {
		return l.inner.SupplyAudio(req, dest)
	}
	count := l.inner.FrameCount()
	n := dest.Size()
	cycle := req.StartFrame / count
	frame := req.StartFrame % count
	written, consumed := 0, 0
	var resp Response
	for {
		part := dest
		if written > 0 {
			part = view(&l.scratch, dest, written, n)
		}
		resp = l.inner.SupplyAudio(AudioRequest{StartFrame: frame, DestSampleRate: req.DestSampleRate}, part)
		written += resp.FramesWritten
		consumed += resp.FramesConsumed
		if written >= n || !l.mayWrap(cycle) || resp.FramesWritten == 0 && frame == 0 {
			break
		}
		cycle++
		frame = 0
	}
	if l.fadesEnabled {
		l.fade(req.StartFrame, dest, written)
	}
	return l.response(written, consumed, n, cycle, resp)
}

// SupplyMidi implements Supplier. Wrapped requests start at negative
// frames, so inner suppliers shift events behind the frames already
// written.
func (l *Looper) SupplyMidi(req MidiRequest, sink EventSink) Response {
	if !l.relevant(req.StartFrame) {
		return l.inner.SupplyMidi(req, sink)
	}
	count := l.inner.FrameCount()
	n := req.DestFrameCount
	cycle := req.StartFrame / count
	frame := req.StartFrame % count
	written, consumed := 0, 0
	var resp Response
	for {
		resp = l.inner.SupplyMidi(MidiRequest{
			StartFrame:     frame,
			DestFrameCount: n,
			DestSampleRate: req.DestSampleRate,
		}, sink)
		consumed += resp.FramesConsumed
		if resp.FramesWritten <= written && frame < 0 {
			break
		}
		written = resp.FramesWritten
		if written >= n || !l.mayWrap(cycle) {
			break
		}
		cycle++
		frame = -written
	}
	return l.response(written, consumed, n, cycle, resp)
}

// response builds the cycle-aware response of the last inner response.
func (l *Looper) response(written, consumed, n, cycle int, last Response) Response {
	count := l.inner.FrameCount()
	if written < n {
		return Response{
			FramesWritten:  written,
			FramesConsumed: consumed,
			NextFrame:      EndOfMaterial,
			NextInnerFrame: EndOfMaterial,
		}
	}
	next := last.NextInnerFrame
	if last.Exhausted() {
		if !l.mayWrap(cycle) {
			return Response{
				FramesWritten:  written,
				FramesConsumed: consumed,
				NextFrame:      EndOfMaterial,
				NextInnerFrame: EndOfMaterial,
			}
		}
		next = 0
		cycle++
	}
	next = checkNextInnerFrame(next, count)
	return Response{
		FramesWritten:  written,
		FramesConsumed: consumed,
		NextFrame:      cycle*count + next,
		NextInnerFrame: next,
	}
}

// fade applies linear ramps to the frames near the loop boundary.
func (l *Looper) fade(start int, dest signal.Float64, written int) {
	count := l.inner.FrameCount()
	length := l.FadeLength()
	if length == 0 {
		return
	}
	for i := 0; i < written; i++ {
		factor := fadeFactor(start+i, count, length)
		if factor == 1 {
			continue
		}
		for c := range dest {
			dest[c][i] *= factor
		}
	}
}

// fadeFactor returns the gain at the frame. Fade out approaches the end of
// every cycle, fade in follows the start of every cycle but the first.
func fadeFactor(frame, count, length int) float64 {
	modulo := frame % count
	if distance := count - modulo; distance < length {
		return float64(distance) / float64(length)
	}
	if frame >= count && modulo < length {
		return float64(modulo) / float64(length)
	}
	return 1
}

// FrameCount implements Supplier. It's the length of one cycle.
func (l *Looper) FrameCount() int {
	return l.inner.FrameCount()
}

// FrameRate implements Supplier.
func (l *Looper) FrameRate() float64 {
	return l.inner.FrameRate()
}

// NumChannels implements Supplier.
func (l *Looper) NumChannels() int {
	return l.inner.NumChannels()
}

// Kind implements Supplier.
func (l *Looper) Kind() Kind {
	return l.inner.Kind()
}
