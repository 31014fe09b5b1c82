package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dudk/clipengine/preset"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/timeline"
)

type presetCommand struct {
	files       stringList
	out         string
	startTiming string
	tempo       float64
	looped      bool
	record      bool
}

//Implement command interface
func (cmd *presetCommand) Name() string {
	return "preset"
}

func (cmd *presetCommand) Help() string {
	return "Create column preset from audio and MIDI files"
}

func (cmd *presetCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.files, "file", "semicolon separated wav or MIDI files, one per slot (required)")
	fs.StringVar(&cmd.out, "out", "", "file to save preset (required)")
	fs.StringVar(&cmd.startTiming, "start", "1/1", "start timing of the column")
	fs.Float64Var(&cmd.tempo, "tempo", 0, "native tempo of audio files")
	fs.BoolVar(&cmd.looped, "looped", true, "loop clips")
	fs.BoolVar(&cmd.record, "record", false, "enable recording")
}

func (cmd *presetCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	c := cmd.column()
	if err := c.Validate(); err != nil {
		return err
	}
	if err := preset.Save(cmd.out, c); err != nil {
		return err
	}
	fmt.Printf("Saved %d slots to %s\n", len(c.Slots), cmd.out)
	return nil
}

func (cmd *presetCommand) column() preset.Column {
	c := preset.Column{
		Settings: preset.Settings{StartTiming: cmd.startTiming},
	}
	if cmd.record {
		c.Settings.Record = &preset.Record{StartTiming: cmd.startTiming, PlayAfter: true}
	}
	for i, f := range cmd.files {
		d := source.Descriptor{Path: f}
		if !isMidi(f) {
			d.Tempo = cmd.tempo
		}
		c.Slots = append(c.Slots, preset.Slot{
			Index: i,
			Clip:  preset.Clip{Name: f, Source: d, Looped: cmd.looped},
		})
	}
	return c
}

func (cmd *presetCommand) Validate() error {
	var message string
	if len(cmd.files) == 0 {
		message = message + "Missing -file required flag\n"
	}
	if cmd.out == "" {
		message = message + "Missing -out required flag\n"
	}
	if _, err := timeline.ParseStartTiming(cmd.startTiming); err != nil {
		message = message + fmt.Sprintf("Invalid -start flag: %v\n", err)
	}
	if message != "" {
		return fmt.Errorf("%s", message)
	}
	return nil
}

func isMidi(path string) bool {
	path = strings.ToLower(path)
	return strings.HasSuffix(path, ".mid") || strings.HasSuffix(path, ".midi") || strings.HasSuffix(path, ".smf")
}
