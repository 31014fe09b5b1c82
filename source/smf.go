package source

import (
	"errors"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/dudk/clipengine/supplier"
)

const (
	// DefaultTempo is assumed for files without tempo.
	DefaultTempo = 120
	// resolution of written files in ticks per quarter note.
	resolution = 960
)

// ReadSMF reads all playable events of the standard MIDI file into
// MIDI material. Tracks are merged. The first tempo of the file is used
// for the whole material and returned as native tempo.
func ReadSMF(path string, frameRate float64) (*supplier.MidiMaterial, float64, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, 0, errors.New("only metric time format is supported")
	}
	tempo := float64(DefaultTempo)
	if changes := s.TempoChanges(); len(changes) > 0 && changes[0].BPM > 0 {
		tempo = changes[0].BPM
	}
	framesPerTick := 60 / tempo / float64(ticks) * frameRate

	var (
		events []supplier.Event
		end    uint64
	)
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			if !ev.Message.IsPlayable() {
				continue
			}
			events = append(events, supplier.Event{
				Frame:   int(math.Round(float64(abs) * framesPerTick)),
				Message: midi.Message(ev.Message),
			})
		}
		if abs > end {
			end = abs
		}
	}
	frameCount := int(math.Round(float64(end) * framesPerTick))
	if frameCount == 0 {
		return nil, 0, errors.New("midi file is empty")
	}
	return supplier.NewMidiMaterial(events, frameCount, frameRate), tempo, nil
}

// SaveSMF writes events of the MIDI material into a single track file.
func SaveSMF(path string, m *supplier.MidiMaterial, tempo float64) error {
	if tempo <= 0 {
		tempo = DefaultTempo
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(resolution)
	ticksPerFrame := float64(resolution) * tempo / 60 / m.FrameRate()

	var track smf.Track
	track.Add(0, smf.MetaTempo(tempo))
	var last uint32
	for _, e := range m.Events() {
		abs := uint32(math.Round(float64(e.Frame) * ticksPerFrame))
		track.Add(abs-last, e.Message)
		last = abs
	}
	end := uint32(math.Round(float64(m.FrameCount()) * ticksPerFrame))
	if end < last {
		end = last
	}
	track.Close(end - last)
	if err := s.Add(track); err != nil {
		return err
	}
	return s.WriteFile(path)
}
