package timeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTiming is returned when timing can't be parsed or validated.
var ErrInvalidTiming = errors.New("invalid timing")

// EvenQuantization is a musical grid of Numerator/Denominator bars. It's
// even in the sense it's neither swing nor dotted. Denominator must be 1 if
// numerator is greater than 1.
type EvenQuantization struct {
	Numerator   int
	Denominator int
}

// Bar quantizes to the next bar.
var Bar = EvenQuantization{Numerator: 1, Denominator: 1}

// Validate checks quantization constraints.
func (q EvenQuantization) Validate() error {
	if q.Numerator <= 0 || q.Denominator <= 0 {
		return fmt.Errorf("%w: %d/%d must be positive", ErrInvalidTiming, q.Numerator, q.Denominator)
	}
	if q.Numerator > 1 && q.Denominator != 1 {
		return fmt.Errorf("%w: %d/%d denominator must be 1", ErrInvalidTiming, q.Numerator, q.Denominator)
	}
	return nil
}

// Bars returns the length of the grid in bars.
func (q EvenQuantization) Bars() float64 {
	return float64(q.Numerator) / float64(q.Denominator)
}

func (q EvenQuantization) String() string {
	return fmt.Sprintf("%d/%d", q.Numerator, q.Denominator)
}

// NextBoundary returns the next grid position in bars strictly after the
// position.
func (q EvenQuantization) NextBoundary(bars float64) float64 {
	length := q.Bars()
	return (math.Floor(bars/length) + 1) * length
}

// ParseQuantization parses "n/d" form.
func ParseQuantization(s string) (EvenQuantization, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return EvenQuantization{}, fmt.Errorf("%w: %q", ErrInvalidTiming, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return EvenQuantization{}, fmt.Errorf("%w: %q: %v", ErrInvalidTiming, s, err)
	}
	d, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return EvenQuantization{}, fmt.Errorf("%w: %q: %v", ErrInvalidTiming, s, err)
	}
	q := EvenQuantization{Numerator: n, Denominator: d}
	return q, q.Validate()
}

// StartTiming defines when a clip starts playing or recording.
type StartTiming struct {
	Quantized    bool
	Quantization EvenQuantization
}

// StartImmediately starts without waiting.
var StartImmediately = StartTiming{}

// StartQuantized starts at the next boundary of the grid.
func StartQuantized(q EvenQuantization) StartTiming {
	return StartTiming{Quantized: true, Quantization: q}
}

func (t StartTiming) String() string {
	if !t.Quantized {
		return "immediately"
	}
	return t.Quantization.String()
}

// ParseStartTiming parses "immediately" or "n/d".
func ParseStartTiming(s string) (StartTiming, error) {
	if s == "immediately" {
		return StartImmediately, nil
	}
	q, err := ParseQuantization(s)
	if err != nil {
		return StartTiming{}, err
	}
	return StartQuantized(q), nil
}

// StopMode enumerates kinds of stop timing.
type StopMode int

const (
	// StopLikeStart uses the start timing.
	StopLikeStart StopMode = iota
	// StopNow stops without waiting.
	StopNow
	// StopOnGrid stops at the next boundary of the grid.
	StopOnGrid
	// StopAtEndOfClip keeps playing until the end of the current cycle.
	StopAtEndOfClip
)

// StopTiming defines when a clip stops playing or recording.
type StopTiming struct {
	Mode         StopMode
	Quantization EvenQuantization
}

var (
	// StopLikeStartTiming resolves to the start timing.
	StopLikeStartTiming = StopTiming{Mode: StopLikeStart}
	// StopImmediately stops without waiting.
	StopImmediately = StopTiming{Mode: StopNow}
	// StopUntilEndOfClip lets the clip finish its cycle.
	StopUntilEndOfClip = StopTiming{Mode: StopAtEndOfClip}
)

// StopQuantized stops at the next boundary of the grid.
func StopQuantized(q EvenQuantization) StopTiming {
	return StopTiming{Mode: StopOnGrid, Quantization: q}
}

// Resolve replaces StopLikeStart with the start timing.
func (t StopTiming) Resolve(start StartTiming) StopTiming {
	if t.Mode != StopLikeStart {
		return t
	}
	if start.Quantized {
		return StopQuantized(start.Quantization)
	}
	return StopImmediately
}

func (t StopTiming) String() string {
	switch t.Mode {
	case StopLikeStart:
		return "like-start"
	case StopNow:
		return "immediately"
	case StopAtEndOfClip:
		return "until-end-of-clip"
	}
	return t.Quantization.String()
}

// ParseStopTiming parses "like-start", "immediately", "until-end-of-clip"
// or "n/d".
func ParseStopTiming(s string) (StopTiming, error) {
	switch s {
	case "like-start":
		return StopLikeStartTiming, nil
	case "immediately":
		return StopImmediately, nil
	case "until-end-of-clip":
		return StopUntilEndOfClip, nil
	}
	q, err := ParseQuantization(s)
	if err != nil {
		return StopTiming{}, err
	}
	return StopQuantized(q), nil
}
