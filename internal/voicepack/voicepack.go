// Package voicepack loads Kokoro voice style tables. A voicepack holds one
// style vector per possible token-sequence length; synthesis picks the row
// matching the length of the padded token sequence.
package voicepack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StyleDim is the width of one style vector.
const StyleDim = 256

// ErrIndexRange is returned when a sequence is longer than the voicepack
// has rows for.
var ErrIndexRange = errors.New("voicepack: style row out of range")

// VoicePack is a read-only row-major float32 matrix.
type VoicePack struct {
	data []float32
	rows int
	cols int
}

// New wraps data as a rows x cols matrix.
func New(data []float32, rows, cols int) (*VoicePack, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("voicepack: invalid shape %dx%d", rows, cols)
	}

	if len(data) != rows*cols {
		return nil, fmt.Errorf("voicepack: %d values do not fill %dx%d", len(data), rows, cols)
	}

	return &VoicePack{data: data, rows: rows, cols: cols}, nil
}

func (v *VoicePack) Rows() int { return v.rows }

func (v *VoicePack) Cols() int { return v.cols }

// Row returns a copy of row i.
func (v *VoicePack) Row(i int) ([]float32, error) {
	if i < 0 || i >= v.rows {
		return nil, fmt.Errorf("%w: row %d, voicepack has %d rows", ErrIndexRange, i, v.rows)
	}

	out := make([]float32, v.cols)
	copy(out, v.data[i*v.cols:(i+1)*v.cols])

	return out, nil
}

// Style returns the style vector for a padded token sequence of seqLen
// tokens, which is row seqLen-1.
func (v *VoicePack) Style(seqLen int) ([]float32, error) {
	row, err := v.Row(seqLen - 1)
	if err != nil {
		return nil, fmt.Errorf("style for sequence length %d: %w", seqLen, err)
	}

	return row, nil
}

// Load reads a voicepack from path. The format follows the extension:
// .npy and .safetensors are parsed, anything else is read as raw
// little-endian float32 with StyleDim columns.
func Load(path string) (*VoicePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("voicepack: read %s: %w", path, err)
	}

	var vp *VoicePack

	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		vp, err = FromNPY(data)
	case ".safetensors":
		vp, err = FromSafetensors(data)
	default:
		vp, err = FromRaw(data)
	}

	if err != nil {
		return nil, fmt.Errorf("voicepack: %s: %w", path, err)
	}

	return vp, nil
}

// FromRaw decodes headerless little-endian float32 rows of StyleDim values.
func FromRaw(data []byte) (*VoicePack, error) {
	const rowBytes = StyleDim * 4
	if len(data) == 0 || len(data)%rowBytes != 0 {
		return nil, fmt.Errorf("raw voicepack size %d is not a multiple of %d", len(data), rowBytes)
	}

	values, err := decodeFloats(data, dtypeF32, len(data)/4)
	if err != nil {
		return nil, err
	}

	return New(values, len(data)/rowBytes, StyleDim)
}

// fromShape accepts (N, StyleDim) and (N, 1, StyleDim) tables.
func fromShape(values []float32, shape []int64) (*VoicePack, error) {
	var rows, cols int64

	switch {
	case len(shape) == 2:
		rows, cols = shape[0], shape[1]
	case len(shape) == 3 && shape[1] == 1:
		rows, cols = shape[0], shape[2]
	default:
		return nil, fmt.Errorf("unsupported voicepack shape %v", shape)
	}

	if cols != StyleDim {
		return nil, fmt.Errorf("voicepack has %d columns, want %d", cols, StyleDim)
	}

	return New(values, int(rows), int(cols))
}
