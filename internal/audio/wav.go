// Package audio reads and writes the mono 16-bit PCM WAV files the
// synthesizer produces.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	Channels   = 1
	BitDepth   = 16
	headerSize = 44
)

// EncodePCM16WAV wraps pcm in a canonical RIFF/WAVE container: a 44-byte
// header followed by the samples as little-endian int16.
func EncodePCM16WAV(pcm []int16, sampleRate int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)*2))

	if _, err := WriteWAVHeader(buf, sampleRate, len(pcm)); err != nil {
		return nil, err
	}

	if _, err := WritePCM16(buf, pcm); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteWAVHeader writes the 44-byte header for numSamples mono 16-bit samples.
func WriteWAVHeader(w io.Writer, sampleRate, numSamples int) (int, error) {
	if sampleRate < 1 {
		return 0, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	if numSamples < 0 {
		return 0, fmt.Errorf("invalid sample count: %d", numSamples)
	}

	const blockAlign = Channels * BitDepth / 8

	dataSize := uint64(numSamples) * blockAlign
	if dataSize > 0xFFFFFFFF-36 {
		return 0, fmt.Errorf("%d samples exceed the WAV size limit", numSamples)
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], Channels)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], BitDepth)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))

	return w.Write(hdr[:])
}

// WritePCM16 writes pcm as little-endian 16-bit signed integers.
func WritePCM16(w io.Writer, pcm []int16) (int, error) {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	return w.Write(buf)
}
