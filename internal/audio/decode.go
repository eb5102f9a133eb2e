package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// ErrFormatMismatch is returned when a decoded WAV does not match the expected format.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// Inspect reads the WAV header and returns its format and bit depth.
func Inspect(data []byte) (*goaudio.Format, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file")
	}

	return &goaudio.Format{SampleRate: int(dec.SampleRate), NumChannels: int(dec.NumChans)}, int(dec.BitDepth), nil
}

// DecodeWAV decodes WAV bytes and returns the PCM samples. It requires mono
// 16-bit PCM at sampleRate.
func DecodeWAV(data []byte, sampleRate int) ([]float32, error) {
	format, bitDepth, err := Inspect(data)
	if err != nil {
		return nil, err
	}

	if format.SampleRate != sampleRate {
		return nil, fmt.Errorf("%w: sample rate %d, want %d", ErrFormatMismatch, format.SampleRate, sampleRate)
	}

	if format.NumChannels != Channels {
		return nil, fmt.Errorf("%w: channels %d, want %d", ErrFormatMismatch, format.NumChannels, Channels)
	}

	if bitDepth != BitDepth {
		return nil, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, bitDepth, BitDepth)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	return buf.Data, nil
}
