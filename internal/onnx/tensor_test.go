package onnx

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewTensor(t *testing.T) {
	t.Run("float32 ok", func(t *testing.T) {
		tt, err := NewTensor([]float32{1, 2, 3, 4}, []int64{2, 2})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		if tt.DType() != DTypeFloat32 {
			t.Fatalf("expected dtype float32, got %s", tt.DType())
		}

		if !reflect.DeepEqual(tt.Shape(), []int64{2, 2}) {
			t.Fatalf("unexpected shape: %v", tt.Shape())
		}

		got, err := tt.Float32s()
		if err != nil {
			t.Fatalf("Float32s failed: %v", err)
		}

		if !reflect.DeepEqual(got, []float32{1, 2, 3, 4}) {
			t.Fatalf("unexpected data: %v", got)
		}
	})

	t.Run("int64 ok", func(t *testing.T) {
		tt, err := NewTensor([]int64{0, 50, 0}, []int64{1, 3})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		if tt.DType() != DTypeInt64 {
			t.Fatalf("expected dtype int64, got %s", tt.DType())
		}

		if _, err := tt.Float32s(); err == nil {
			t.Fatal("expected Float32s to reject int64 tensor")
		}
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := NewTensor([]int64{1, 2, 3}, []int64{2, 2})
		if err == nil {
			t.Fatal("expected shape mismatch error")
		}

		if !strings.Contains(err.Error(), "needs 4 elements, got 3") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("dynamic dim rejected", func(t *testing.T) {
		if _, err := NewTensor([]float32{1}, []int64{-1}); err == nil {
			t.Fatal("expected error for negative dimension")
		}
	})
}

func TestTensorCopies(t *testing.T) {
	src := []float32{1, 2}

	tt, err := NewTensor(src, []int64{2})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	src[0] = 9

	data, ok := tt.Data().([]float32)
	if !ok {
		t.Fatalf("Data() type = %T", tt.Data())
	}

	if data[0] != 1 {
		t.Fatalf("tensor aliases caller slice: %v", data)
	}

	data[1] = 9

	again, _ := tt.Float32s()
	if again[1] != 2 {
		t.Fatalf("Data() result aliases tensor: %v", again)
	}
}
