package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/clipengine/signal"
	"github.com/dudk/clipengine/supplier"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

// ReadWAV decodes the whole wav file into audio material.
func ReadWAV(path string) (*supplier.AudioMaterial, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, errors.New("wav is not valid")
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth24 && bitDepth != signal.BitDepth32 {
		return nil, fmt.Errorf("bit depth %d: %w", bitDepth, ErrUnsupportedBitDepth)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	data := signal.InterInt{
		Data:        buf.Data,
		NumChannels: buf.Format.NumChannels,
		BitDepth:    bitDepth,
	}.AsFloat64()
	if data.Size() == 0 {
		return nil, errors.New("wav is empty")
	}
	return supplier.NewAudioMaterial(data, float64(decoder.SampleRate)), nil
}

// WriteWAV encodes audio into the writer.
func WriteWAV(w io.WriteSeeker, data signal.Float64, sampleRate int, bitDepth signal.BitDepth) error {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return ErrUnsupportedBitDepth
	}
	if data.NumChannels() == 0 {
		return errors.New("no channels to write")
	}
	encoder := wav.NewEncoder(w, sampleRate, int(bitDepth), data.NumChannels(), 1)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: data.NumChannels(),
			SampleRate:  sampleRate,
		},
		Data:           data.AsInterInt(bitDepth),
		SourceBitDepth: int(bitDepth),
	}
	if err := encoder.Write(ib); err != nil {
		return err
	}
	return encoder.Close()
}

// SaveWAV writes audio into a new wav file at path.
func SaveWAV(path string, data signal.Float64, sampleRate int, bitDepth signal.BitDepth) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(file, data, sampleRate, bitDepth); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
