package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor prepared for model input, row-major.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// Verify checks that every dimension is positive and matches the data length.
func (t Tensor) Verify() error {
	if len(t.Shape) == 0 {
		return errors.New("empty shape")
	}
	n := int64(1)
	for i, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, d)
		}
		n *= d
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), n, t.Shape)
	}
	return nil
}
