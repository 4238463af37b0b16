// Package projector builds a 2D affine coordinate system embedded in a
// high-dimensional parameter space from three reference vectors, and
// converts between full parameter vectors and plane coordinates.
package projector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/go-landscape/tensor"
)

// CenterPolicy selects how the plane's affine offset is chosen.
type CenterPolicy string

const (
	CenterNone    CenterPolicy = ""
	CenterMean    CenterPolicy = "mean"
	CenterMinNorm CenterPolicy = "minnorm"
)

// ScalePolicy selects whether and how the plane axes are orthonormalized.
type ScalePolicy string

const (
	ScaleNone     ScalePolicy = ""
	ScaleL2Ortho  ScalePolicy = "l2_ortho"
	ScaleRMSOrtho ScalePolicy = "rms_ortho"
)

// Projector is the bidirectional map between a D-dimensional parameter
// space and the 2D plane through three reference vectors. It is immutable
// after construction; all operations are pure and safe for concurrent use.
type Projector struct {
	center CenterPolicy
	scale  ScalePolicy
	dim    int
	affine *mat.VecDense // plane origin, length D
	basis  *mat.Dense    // two spanning directions, D x 2
	ortho  bool
}

// New constructs a projector from three strictly 1-dimensional reference
// vectors of equal length. The plane passes through all three vectors.
func New(vec0, vec1, vec2 *tensor.Tensor, center CenterPolicy, scale ScalePolicy) (*Projector, error) {
	if vec0.Dims() != 1 || vec1.Dims() != 1 || vec2.Dims() != 1 {
		return nil, &InvalidShapeError{Dims: []int{vec0.Dims(), vec1.Dims(), vec2.Dims()}}
	}
	dim := vec0.NumElems()
	if vec1.NumElems() != dim || vec2.NumElems() != dim {
		return nil, fmt.Errorf("vectors need equal lengths, got %d, %d, %d",
			dim, vec1.NumElems(), vec2.NumElems())
	}

	center = normalizeCenter(center)
	switch center {
	case CenterNone, CenterMean, CenterMinNorm:
	default:
		return nil, &InvalidOptionError{Arg: "center", Value: string(center)}
	}
	scale = normalizeScale(scale)
	switch scale {
	case ScaleNone, ScaleL2Ortho, ScaleRMSOrtho:
	default:
		return nil, &InvalidOptionError{Arg: "scale", Value: string(scale)}
	}

	p := &Projector{center: center, scale: scale, dim: dim}

	affine := mat.NewVecDense(dim, nil)
	copy(affine.RawVector().Data, vec0.Data)
	if center == CenterMean {
		for i := 0; i < dim; i++ {
			affine.SetVec(i, (vec0.Data[i]+vec1.Data[i]+vec2.Data[i])/3)
		}
	}

	basis := mat.NewDense(dim, 2, nil)
	for i := 0; i < dim; i++ {
		basis.Set(i, 0, vec1.Data[i]-affine.AtVec(i))
		basis.Set(i, 1, vec2.Data[i]-affine.AtVec(i))
	}

	if center == CenterMinNorm {
		// Recenter the origin at the point on the plane closest to zero.
		// The plane itself is unchanged: the offset is subtracted from the
		// basis columns so they still point at vec1 and vec2.
		negAffine := mat.NewVecDense(dim, nil)
		negAffine.ScaleVec(-1, affine)
		t, err := lstsqVec(basis, negAffine)
		if err != nil {
			return nil, fmt.Errorf("minnorm centering failed: %v", err)
		}
		offset := mat.NewVecDense(dim, nil)
		offset.MulVec(basis, t)
		affine.AddVec(affine, offset)
		for i := 0; i < dim; i++ {
			basis.Set(i, 0, basis.At(i, 0)-offset.AtVec(i))
			basis.Set(i, 1, basis.At(i, 1)-offset.AtVec(i))
		}
	}

	if scale == ScaleL2Ortho || scale == ScaleRMSOrtho {
		var svd mat.SVD
		if ok := svd.Factorize(basis, mat.SVDThin); !ok {
			return nil, fmt.Errorf("SVD factorization of basis failed")
		}
		var u mat.Dense
		svd.UTo(&u)
		basis = &u
		p.ortho = true
	}

	p.affine = affine
	p.basis = basis
	return p, nil
}

func normalizeCenter(c CenterPolicy) CenterPolicy {
	if c == "none" {
		return CenterNone
	}
	return c
}

func normalizeScale(s ScalePolicy) ScalePolicy {
	if s == "none" {
		return ScaleNone
	}
	return s
}

// Dim returns the parameter-space dimension D.
func (p *Projector) Dim() int {
	return p.dim
}

// Affine returns a copy of the plane origin.
func (p *Projector) Affine() *tensor.Tensor {
	data := make([]float64, p.dim)
	copy(data, p.affine.RawVector().Data)
	return tensor.FromVec(data)
}

// Basis returns a copy of the D x 2 basis matrix.
func (p *Projector) Basis() *tensor.Tensor {
	data := make([]float64, p.dim*2)
	for i := 0; i < p.dim; i++ {
		data[i*2] = p.basis.At(i, 0)
		data[i*2+1] = p.basis.At(i, 1)
	}
	t, _ := tensor.New([]int{p.dim, 2}, data)
	return t
}

// Project converts a full parameter vector to plane coordinates. When
// isPosition is true the vector is treated as a point (the origin is
// subtracted first); otherwise as a direction.
func (p *Projector) Project(vec *tensor.Tensor, isPosition bool) (*tensor.Tensor, error) {
	if vec.Dims() != 1 || vec.NumElems() != p.dim {
		return nil, &InvalidShapeError{Dims: []int{vec.Dims()}}
	}

	v := mat.NewVecDense(p.dim, nil)
	copy(v.RawVector().Data, vec.Data)
	if isPosition {
		v.SubVec(v, p.affine)
	}

	coord := mat.NewVecDense(2, nil)
	if p.ortho {
		coord.MulVec(p.basis.T(), v)
	} else {
		solved, err := lstsqVec(p.basis, v)
		if err != nil {
			return nil, fmt.Errorf("projection solve failed: %v", err)
		}
		coord = solved
	}

	if p.scale == ScaleRMSOrtho {
		// Rescale so the coordinate preserves rms magnitude instead of norm.
		coord.ScaleVec(math.Sqrt(2)/math.Sqrt(float64(p.dim)), coord)
	}
	return tensor.FromVec([]float64{coord.AtVec(0), coord.AtVec(1)}), nil
}

// Map converts plane coordinates back to a full parameter vector. When
// isPosition is true the origin is added back.
func (p *Projector) Map(coord *tensor.Tensor, isPosition bool) (*tensor.Tensor, error) {
	if coord.Dims() != 1 || coord.NumElems() != 2 {
		return nil, &InvalidShapeError{Dims: []int{coord.Dims()}}
	}

	c := mat.NewVecDense(2, []float64{coord.Data[0], coord.Data[1]})
	if p.scale == ScaleRMSOrtho {
		c.ScaleVec(math.Sqrt(float64(p.dim))/math.Sqrt(2), c)
	}

	vec := mat.NewVecDense(p.dim, nil)
	vec.MulVec(p.basis, c)
	if isPosition {
		vec.AddVec(vec, p.affine)
	}

	data := make([]float64, p.dim)
	copy(data, vec.RawVector().Data)
	return tensor.FromVec(data), nil
}

// Apply dispatches to Project or Map by input length: a vector of length D
// is projected, a vector of length 2 is mapped. If D equals 2, projection
// takes precedence.
func (p *Projector) Apply(in *tensor.Tensor, isPosition bool) (*tensor.Tensor, error) {
	if in.Dims() == 1 && in.NumElems() == p.dim {
		return p.Project(in, isPosition)
	}
	if in.Dims() == 1 && in.NumElems() == 2 {
		return p.Map(in, isPosition)
	}
	return nil, &AmbiguousInputError{Len: in.NumElems(), Dim: p.dim}
}

// Error computes the round-trip residual norm ||vec - Map(Project(vec))||_p.
// Use math.Inf(1) for the maximum-norm.
func (p *Projector) Error(vec *tensor.Tensor, ord float64) (float64, error) {
	diff, err := p.roundTripDiff(vec)
	if err != nil {
		return 0, err
	}
	return diff.Norm(ord), nil
}

// ErrorRMS computes the root-mean-square round-trip residual.
func (p *Projector) ErrorRMS(vec *tensor.Tensor) (float64, error) {
	diff, err := p.roundTripDiff(vec)
	if err != nil {
		return 0, err
	}
	return diff.RMS(), nil
}

func (p *Projector) roundTripDiff(vec *tensor.Tensor) (*tensor.Tensor, error) {
	coord, err := p.Project(vec, true)
	if err != nil {
		return nil, err
	}
	back, err := p.Map(coord, true)
	if err != nil {
		return nil, err
	}
	return tensor.Sub(vec, back)
}

// lstsqVec solves min ||a*x - b|| in the least-squares sense via QR.
func lstsqVec(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	var qr mat.QR
	qr.Factorize(a)

	_, cols := a.Dims()
	x := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(x, false, b); err != nil {
		return nil, err
	}
	return x, nil
}
