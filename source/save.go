package source

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/supplier"
)

// Save writes material into a new file in dir and returns its descriptor.
// Audio is stored as 16 bit wav, MIDI as standard MIDI file.
func Save(dir, name string, material supplier.Supplier, tempo float64) (Descriptor, error) {
	switch m := material.(type) {
	case *supplier.AudioMaterial:
		path := filepath.Join(dir, name+".wav")
		rate := int(math.Round(m.FrameRate()))
		if err := SaveWAV(path, m.Data(), rate, signal.BitDepth16); err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Path: path, Tempo: tempo}, nil
	case *supplier.MidiMaterial:
		path := filepath.Join(dir, name+".mid")
		if err := SaveSMF(path, m, tempo); err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Path: path, Tempo: tempo}, nil
	}
	return Descriptor{}, fmt.Errorf("%w: can't save %T", ErrUnavailable, material)
}
