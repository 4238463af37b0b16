package tensor

import (
	"fmt"
)

// Tensor is a dense, row-major float64 tensor kept in host memory.
// Evaluation results and parameter vectors are small enough that a
// single contiguous backing slice is sufficient.
type Tensor struct {
	Shape   []int     `json:"shape"`
	Data    []float64 `json:"data"`
	strides []int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, elements=%d)", t.Shape, t.NumElems())
}

// NumElems returns the total number of elements.
func (t *Tensor) NumElems() int {
	return calculateNumElements(t.Shape)
}

// Dims returns the number of axes.
func (t *Tensor) Dims() int {
	return len(t.Shape)
}

// Strides returns the row-major strides, computing them on first use.
func (t *Tensor) Strides() []int {
	if t.strides == nil {
		t.strides = calculateStrides(t.Shape)
	}
	return t.strides
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) (float64, error) {
	idx, err := t.linearIndex(indices)
	if err != nil {
		return 0, err
	}
	return t.Data[idx], nil
}

// Set writes the element at the given indices.
func (t *Tensor) Set(value float64, indices ...int) error {
	idx, err := t.linearIndex(indices)
	if err != nil {
		return err
	}
	t.Data[idx] = value
	return nil
}

func (t *Tensor) linearIndex(indices []int) (int, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}
	strides := t.Strides()
	idx := 0
	for i, ix := range indices {
		if ix < 0 || ix >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of range for axis %d with size %d", ix, i, t.Shape[i])
		}
		idx += ix * strides[i]
	}
	return idx, nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return &Tensor{Shape: shape, Data: data}
}

// Reshape returns a view-copy of the tensor with the new shape. At most one
// dimension may be -1, in which case it is inferred from the element count.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	inferred := -1
	known := 1
	for i, dim := range shape {
		if dim == -1 {
			if inferred >= 0 {
				return nil, fmt.Errorf("only one dimension may be -1, got shape %v", shape)
			}
			inferred = i
			continue
		}
		if dim <= 0 {
			return nil, fmt.Errorf("invalid shape %v: dimension %d has size %d", shape, i, dim)
		}
		known *= dim
	}

	resolved := make([]int, len(shape))
	copy(resolved, shape)
	if inferred >= 0 {
		if known == 0 || t.NumElems()%known != 0 {
			return nil, fmt.Errorf("cannot infer dimension %d: %d elements not divisible by %d", inferred, t.NumElems(), known)
		}
		resolved[inferred] = t.NumElems() / known
		known *= resolved[inferred]
	}
	if known != t.NumElems() {
		return nil, fmt.Errorf("cannot reshape %d elements to shape %v", t.NumElems(), resolved)
	}

	return &Tensor{Shape: resolved, Data: t.Data}, nil
}

// SqueezeTrailing drops trailing singleton dimensions. A scalar-shaped
// tensor keeps a single axis of size 1.
func (t *Tensor) SqueezeTrailing() *Tensor {
	end := len(t.Shape)
	for end > 1 && t.Shape[end-1] == 1 {
		end--
	}
	shape := make([]int, end)
	copy(shape, t.Shape[:end])
	return &Tensor{Shape: shape, Data: t.Data}
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}
