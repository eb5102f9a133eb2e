package voicepack

import (
	"encoding/binary"
	"fmt"
	"math"
)

type dtype int

const (
	dtypeF32 dtype = iota
	dtypeF64
	dtypeF16
	dtypeBF16
)

func (d dtype) size() int {
	switch d {
	case dtypeF64:
		return 8
	case dtypeF16, dtypeBF16:
		return 2
	default:
		return 4
	}
}

// decodeFloats converts n little-endian values of type d to float32.
func decodeFloats(raw []byte, d dtype, n int) ([]float32, error) {
	if len(raw) < n*d.size() {
		return nil, fmt.Errorf("need %d bytes for %d values, got %d", n*d.size(), n, len(raw))
	}

	out := make([]float32, n)

	switch d {
	case dtypeF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case dtypeF64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case dtypeF16:
		for i := range out {
			out[i] = float16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case dtypeBF16:
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %d", d)
	}

	return out, nil
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x03ff)

	var bits uint32

	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
			break
		}

		// Subnormal: normalize.
		e := int32(-14)
		for (frac & 0x0400) == 0 {
			frac <<= 1
			e--
		}

		frac &= 0x03ff
		bits = (sign << 31) | (uint32(e+127) << 23) | (frac << 13)
	case 0x1f:
		bits = (sign << 31) | 0x7f800000 | (frac << 13)
	default:
		bits = (sign << 31) | ((exp + 127 - 15) << 23) | (frac << 13)
	}

	return math.Float32frombits(bits)
}

func elementCount(shape []int64) (int, error) {
	total := int64(1)

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension in shape %v", shape)
		}

		if d != 0 && total > math.MaxInt32/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return int(total), nil
}
