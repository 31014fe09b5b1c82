package clipengine

import (
	"fmt"
	"time"

	"github.com/dudk/clipengine/log"
	"github.com/dudk/clipengine/metric"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/timeline"
)

// Option configures a column.
type Option func(*Column) error

// WithLogger sets the logger of controller side.
func WithLogger(l log.Logger) Option {
	return func(c *Column) error {
		c.log = l
		return nil
	}
}

// WithSettings sets initial column settings.
func WithSettings(s ColumnSettings) Option {
	return func(c *Column) error {
		if err := s.Validate(); err != nil {
			return err
		}
		c.settings = s
		return nil
	}
}

// WithCommandCapacity sets capacity of command queue.
func WithCommandCapacity(n int) Option {
	return func(c *Column) error {
		if n <= 0 {
			return fmt.Errorf("%w: command capacity %d", ErrInvalidSettings, n)
		}
		c.commandCapacity = n
		return nil
	}
}

// WithEventCapacity sets capacity of event queue.
func WithEventCapacity(n int) Option {
	return func(c *Column) error {
		if n <= 0 {
			return fmt.Errorf("%w: event capacity %d", ErrInvalidSettings, n)
		}
		c.eventCapacity = n
		return nil
	}
}

// WithCommandBatchSize limits the number of commands applied per cycle.
func WithCommandBatchSize(n int) Option {
	return func(c *Column) error {
		if n <= 0 {
			return fmt.Errorf("%w: command batch %d", ErrInvalidSettings, n)
		}
		c.batch = n
		return nil
	}
}

// WithTransport makes column observe transport changes itself.
func WithTransport(t timeline.Transport) Option {
	return func(c *Column) error {
		c.transport = t
		return nil
	}
}

// WithTimeline makes column query moments itself instead of using the
// moment of process arguments.
func WithTimeline(t timeline.Timeline) Option {
	return func(c *Column) error {
		c.timeline = t
		return nil
	}
}

// WithAcquirer sets acquirer of clip material.
func WithAcquirer(a source.Acquirer) Option {
	return func(c *Column) error {
		c.acquirer = a
		return nil
	}
}

// WithMetric enables column metrics.
func WithMetric() Option {
	return func(c *Column) error {
		c.metered = true
		return nil
	}
}

// WithFormat sets the format of processed buffers.
func WithFormat(numChannels int, sampleRate float64, maxFrames int) Option {
	return func(c *Column) error {
		if numChannels <= 0 || numChannels > maxChannels || sampleRate <= 0 || maxFrames <= 0 {
			return fmt.Errorf("%w: format %d channels %v hz %d frames", ErrInvalidSettings, numChannels, sampleRate, maxFrames)
		}
		c.numChannels = numChannels
		c.sampleRate = sampleRate
		c.maxFrames = maxFrames
		return nil
	}
}

// WithPollInterval sets bounds of the poll interval.
func WithPollInterval(base, max time.Duration) Option {
	return func(c *Column) error {
		if base <= 0 || max < base {
			return fmt.Errorf("%w: poll interval %v-%v", ErrInvalidSettings, base, max)
		}
		c.pollBase = base
		c.pollMax = max
		return nil
	}
}

// WithRecordingDir makes controller save finished recordings as files
// into dir.
func WithRecordingDir(dir string) Option {
	return func(c *Column) error {
		c.recordingDir = dir
		return nil
	}
}

func (c *Column) newMeter() *metric.Meter {
	if !c.metered {
		return nil
	}
	return metric.New(c, c.sampleRate)
}
