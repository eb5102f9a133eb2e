package onnx

import (
	"fmt"
	"math"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a runtime-neutral dense tensor passed to and from a GraphRunner.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

// NewTensor copies data into a tensor of the given shape. Dynamic (-1)
// dimensions are not allowed; the shape must match len(data) exactly.
func NewTensor[T int64 | float32](data []T, shape []int64) (*Tensor, error) {
	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	switch v := any(data).(type) {
	case []float32:
		t.dtype, t.data = DTypeFloat32, append([]float32(nil), v...)
	case []int64:
		t.dtype, t.data = DTypeInt64, append([]int64(nil), v...)
	}

	return t, nil
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the backing slice ([]float32 or []int64).
func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

// Float32s returns a copy of the data of a float32 tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("expected float32 tensor, got nil")
	}

	data, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}

	return append([]float32(nil), data...), nil
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}

	if count != dataLen {
		return fmt.Errorf("shape %v needs %d elements, got %d", shape, count, dataLen)
	}

	return nil
}

func elementCount(shape []int64) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("shape must not be empty")
	}

	total := 1

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid dimension %d in shape %v", d, shape)
		}

		if d != 0 && int64(total) > math.MaxInt32/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= int(d)
	}

	return total, nil
}
