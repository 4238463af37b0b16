package tensor

import (
	"fmt"
	"math"
)

// Norm computes the p-norm over all elements. p must be positive;
// math.Inf(1) yields the maximum absolute value.
func (t *Tensor) Norm(p float64) float64 {
	if math.IsInf(p, 1) {
		max := 0.0
		for _, v := range t.Data {
			if a := math.Abs(v); a > max {
				max = a
			}
		}
		return max
	}

	var sum float64
	for _, v := range t.Data {
		sum += math.Pow(math.Abs(v), p)
	}
	return math.Pow(sum, 1/p)
}

// RMS computes the root-mean-square magnitude over all elements.
func (t *Tensor) RMS() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range t.Data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(t.Data)))
}

// Sub returns t - other element-wise. Shapes must match exactly.
func Sub(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkSameShape(t1, t2); err != nil {
		return nil, err
	}
	data := make([]float64, len(t1.Data))
	for i := range data {
		data[i] = t1.Data[i] - t2.Data[i]
	}
	return &Tensor{Shape: append([]int{}, t1.Shape...), Data: data}, nil
}

// Add returns t1 + t2 element-wise. Shapes must match exactly.
func Add(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkSameShape(t1, t2); err != nil {
		return nil, err
	}
	data := make([]float64, len(t1.Data))
	for i := range data {
		data[i] = t1.Data[i] + t2.Data[i]
	}
	return &Tensor{Shape: append([]int{}, t1.Shape...), Data: data}, nil
}

// Scale returns t multiplied by a scalar.
func Scale(t *Tensor, s float64) *Tensor {
	data := make([]float64, len(t.Data))
	for i, v := range t.Data {
		data[i] = v * s
	}
	return &Tensor{Shape: append([]int{}, t.Shape...), Data: data}
}

func checkSameShape(t1, t2 *Tensor) error {
	if len(t1.Shape) != len(t2.Shape) {
		return shapeMismatch(t1, t2)
	}
	for i, dim := range t1.Shape {
		if dim != t2.Shape[i] {
			return shapeMismatch(t1, t2)
		}
	}
	return nil
}

func shapeMismatch(t1, t2 *Tensor) error {
	return fmt.Errorf("shape mismatch: %v vs %v", t1.Shape, t2.Shape)
}
