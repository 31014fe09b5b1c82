package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dudk/clipengine"
	"github.com/dudk/clipengine/log"
	"github.com/dudk/clipengine/metric"
	"github.com/dudk/clipengine/portaudio"
	"github.com/dudk/clipengine/preset"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/timeline"
)

type playCommand struct {
	preset     string
	sampleRate float64
	bufferSize int
	tempo      float64
	bars       float64
	metrics    bool
}

//Implement command interface
func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play all clips of column preset"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.preset, "preset", "", "column preset to play (required)")
	fs.Float64Var(&cmd.sampleRate, "rate", 44100, "sample rate")
	fs.IntVar(&cmd.bufferSize, "buffer", 512, "buffer size in frames")
	fs.Float64Var(&cmd.tempo, "tempo", 120, "tempo in beats per minute")
	fs.Float64Var(&cmd.bars, "bars", 0, "number of bars to play, zero plays until interrupted")
	fs.BoolVar(&cmd.metrics, "metrics", false, "print metrics when done")
}

func (cmd *playCommand) Run() error {
	if cmd.preset == "" {
		return fmt.Errorf("Missing -preset required flag")
	}
	p, err := preset.Load(cmd.preset)
	if err != nil {
		return err
	}
	logger := log.New("play")
	tl := timeline.NewSteady(cmd.sampleRate, cmd.tempo, 4)
	c, err := clipengine.NewColumn(
		clipengine.WithLogger(logger),
		clipengine.WithFormat(2, cmd.sampleRate, cmd.bufferSize),
		clipengine.WithTimeline(tl),
		clipengine.WithTransport(tl),
		clipengine.WithAcquirer(source.Files{Dir: filepath.Dir(cmd.preset), FrameRate: cmd.sampleRate}),
		clipengine.WithCommandCapacity(clipengine.DefaultCapacity+len(p.Slots)),
		clipengine.WithMetric(),
	)
	if err != nil {
		return err
	}
	if err := c.Load(p); err != nil {
		logger.Warn(err)
	}
	for _, s := range p.Slots {
		if _, ok := c.Slot(s.Index); !ok {
			continue
		}
		if err := c.PlayClip(s.Index, nil); err != nil {
			return err
		}
	}

	host := portaudio.NewHost(tl, cmd.sampleRate, cmd.bufferSize, 2, 0)
	if err := host.Start(); err != nil {
		return err
	}
	defer host.Close()
	if err := c.Activate(host); err != nil {
		return err
	}
	defer c.Deactivate()
	tl.Play()
	logger.Info(c, ": playing ", cmd.preset)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	var done <-chan time.Time
	if cmd.bars > 0 {
		d := time.Duration(cmd.bars * tl.CurrentMoment().BarDuration() * float64(time.Second))
		done = time.After(d)
	}
	for {
		select {
		case <-interrupt:
			return cmd.stop(c, tl)
		case <-done:
			return cmd.stop(c, tl)
		case <-time.After(c.PollInterval()):
			for _, e := range c.Poll() {
				if e.Kind != clipengine.PositionChanged {
					logger.Info(c, ": ", e)
				}
			}
		}
	}
}

func (cmd *playCommand) stop(c *clipengine.Column, tl *timeline.Steady) error {
	tl.Stop()
	if cmd.metrics {
		for name, value := range metric.Get(c) {
			fmt.Printf("%s: %s\n", name, value)
		}
	}
	return nil
}
