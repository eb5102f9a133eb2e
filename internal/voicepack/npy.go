package voicepack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// FromNPY decodes a NumPy .npy array (format versions 1-3, C order,
// little-endian float16/32/64).
func FromNPY(data []byte) (*VoicePack, error) {
	header, payload, err := splitNPY(data)
	if err != nil {
		return nil, err
	}

	d, shape, err := parseNPYHeader(header)
	if err != nil {
		return nil, err
	}

	n, err := elementCount(shape)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}

	values, err := decodeFloats(payload, d, n)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}

	return fromShape(values, shape)
}

func splitNPY(data []byte) (header string, payload []byte, err error) {
	if len(data) < len(npyMagic)+4 || !bytes.HasPrefix(data, npyMagic) {
		return "", nil, errors.New("npy: missing magic")
	}

	major := data[6]
	offset := 8

	var headerLen int

	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	case 2, 3:
		if len(data) < offset+4 {
			return "", nil, errors.New("npy: truncated header length")
		}

		headerLen = int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
	default:
		return "", nil, fmt.Errorf("npy: unsupported format version %d", major)
	}

	if offset+headerLen > len(data) {
		return "", nil, fmt.Errorf("npy: header length %d exceeds file size %d", headerLen, len(data))
	}

	return string(data[offset : offset+headerLen]), data[offset+headerLen:], nil
}

func parseNPYHeader(header string) (dtype, []int64, error) {
	m := npyDescr.FindStringSubmatch(header)
	if m == nil {
		return 0, nil, errors.New("npy: header has no descr")
	}

	var d dtype

	switch m[1] {
	case "<f4":
		d = dtypeF32
	case "<f8":
		d = dtypeF64
	case "<f2":
		d = dtypeF16
	default:
		return 0, nil, fmt.Errorf("npy: unsupported dtype %q", m[1])
	}

	if f := npyFortran.FindStringSubmatch(header); f != nil && f[1] == "True" {
		return 0, nil, errors.New("npy: fortran-ordered arrays are not supported")
	}

	s := npyShape.FindStringSubmatch(header)
	if s == nil {
		return 0, nil, errors.New("npy: header has no shape")
	}

	var shape []int64

	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		dim, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("npy: bad shape %q: %w", s[1], err)
		}

		shape = append(shape, dim)
	}

	return d, shape, nil
}
