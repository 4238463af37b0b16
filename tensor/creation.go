package tensor

import (
	"fmt"
)

// New creates a tensor with the given shape backed by data. The data slice
// is used directly, not copied.
func New(shape []int, data []float64) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if len(data) != calculateNumElements(shape) {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, calculateNumElements(shape))
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	return &Tensor{Shape: shape, Data: make([]float64, calculateNumElements(shape))}, nil
}

// FromVec creates a 1D tensor from a slice. The slice is used directly.
func FromVec(data []float64) *Tensor {
	return &Tensor{Shape: []int{len(data)}, Data: data}
}

// FromScalar creates a single-element tensor.
func FromScalar(value float64) *Tensor {
	return &Tensor{Shape: []int{1}, Data: []float64{value}}
}

// Stack combines tensors of identical shape into one tensor with a new
// leading axis of size len(tensors).
func Stack(tensors []*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("cannot stack zero tensors")
	}

	first := tensors[0]
	for i, t := range tensors[1:] {
		if len(t.Shape) != len(first.Shape) {
			return nil, fmt.Errorf("shape mismatch at index %d: %v vs %v", i+1, t.Shape, first.Shape)
		}
		for j, dim := range t.Shape {
			if dim != first.Shape[j] {
				return nil, fmt.Errorf("shape mismatch at index %d: %v vs %v", i+1, t.Shape, first.Shape)
			}
		}
	}

	elemSize := first.NumElems()
	shape := append([]int{len(tensors)}, first.Shape...)
	data := make([]float64, len(tensors)*elemSize)
	for i, t := range tensors {
		copy(data[i*elemSize:(i+1)*elemSize], t.Data)
	}
	return &Tensor{Shape: shape, Data: data}, nil
}
