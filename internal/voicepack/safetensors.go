package voicepack

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type safetensorsEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// FromSafetensors decodes the first tensor (by name) of a safetensors file.
// The format is an 8-byte LE header length, a JSON header and raw tensor data.
func FromSafetensors(data []byte) (*VoicePack, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("safetensors: header length %d exceeds file size %d", headerLen, len(data))
	}

	headerEnd := 8 + int(headerLen)

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	names := make([]string, 0, len(header))
	for name := range header {
		if name != "__metadata__" {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	sort.Strings(names)

	var entry safetensorsEntry
	if err := json.Unmarshal(header[names[0]], &entry); err != nil {
		return nil, fmt.Errorf("safetensors: decode header entry %q: %w", names[0], err)
	}

	var d dtype

	switch strings.ToUpper(entry.DType) {
	case "F32":
		d = dtypeF32
	case "F16":
		d = dtypeF16
	case "BF16":
		d = dtypeBF16
	default:
		return nil, fmt.Errorf("safetensors: tensor %q has unsupported dtype %q", names[0], entry.DType)
	}

	start, end := headerEnd+entry.Offsets[0], headerEnd+entry.Offsets[1]
	if entry.Offsets[0] < 0 || end < start || end > len(data) {
		return nil, fmt.Errorf("safetensors: tensor %q data [%d:%d] exceeds file size %d", names[0], start, end, len(data))
	}

	n, err := elementCount(entry.Shape)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q: %w", names[0], err)
	}

	values, err := decodeFloats(data[start:end], d, n)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q: %w", names[0], err)
	}

	return fromShape(values, entry.Shape)
}
