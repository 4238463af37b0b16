package projector

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/tsawler/go-landscape/tensor"
)

const tolerance = 1e-9

var centerPolicies = []CenterPolicy{CenterNone, CenterMean, CenterMinNorm}
var scalePolicies = []ScalePolicy{ScaleNone, ScaleL2Ortho, ScaleRMSOrtho}

// referenceVectors returns a deterministic, non-collinear triple in D dims.
func referenceVectors(t *testing.T, dim int) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	make1 := func() *tensor.Tensor {
		data := make([]float64, dim)
		for i := range data {
			data[i] = rng.NormFloat64()
		}
		return tensor.FromVec(data)
	}
	return make1(), make1(), make1()
}

func TestIdentityScenario(t *testing.T) {
	// Toy 2D parameter space: the plane is the whole space.
	vec0 := tensor.FromVec([]float64{0, 0})
	vec1 := tensor.FromVec([]float64{1, 0})
	vec2 := tensor.FromVec([]float64{0, 1})

	p, err := New(vec0, vec1, vec2, CenterNone, ScaleNone)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	affine := p.Affine()
	if affine.Data[0] != 0 || affine.Data[1] != 0 {
		t.Errorf("affine = %v, expected [0 0]", affine.Data)
	}

	basis := p.Basis()
	expected := []float64{1, 0, 0, 1}
	for i, v := range basis.Data {
		if math.Abs(v-expected[i]) > tolerance {
			t.Errorf("basis = %v, expected identity", basis.Data)
			break
		}
	}

	coord, err := p.Project(tensor.FromVec([]float64{0.5, 0.5}), true)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if math.Abs(coord.Data[0]-0.5) > tolerance || math.Abs(coord.Data[1]-0.5) > tolerance {
		t.Errorf("Project([0.5 0.5]) = %v, expected [0.5 0.5]", coord.Data)
	}
}

func TestMeanCenterScenario(t *testing.T) {
	vec0 := tensor.FromVec([]float64{0, 0})
	vec1 := tensor.FromVec([]float64{1, 0})
	vec2 := tensor.FromVec([]float64{0, 1})

	p, err := New(vec0, vec1, vec2, CenterMean, ScaleNone)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	affine := p.Affine()
	third := 1.0 / 3.0
	if math.Abs(affine.Data[0]-third) > tolerance || math.Abs(affine.Data[1]-third) > tolerance {
		t.Errorf("affine = %v, expected [1/3 1/3]", affine.Data)
	}
}

func TestRoundTripAllPolicies(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 17)

	for _, center := range centerPolicies {
		for _, scale := range scalePolicies {
			p, err := New(vec0, vec1, vec2, center, scale)
			if err != nil {
				t.Fatalf("New(center=%q, scale=%q) failed: %v", center, scale, err)
			}

			coord := tensor.FromVec([]float64{0.37, -1.2})
			vec, err := p.Map(coord, true)
			if err != nil {
				t.Fatalf("Map failed: %v", err)
			}
			back, err := p.Project(vec, true)
			if err != nil {
				t.Fatalf("Project failed: %v", err)
			}

			for i := range coord.Data {
				if math.Abs(back.Data[i]-coord.Data[i]) > 1e-8 {
					t.Errorf("center=%q scale=%q: project(map(c)) = %v, expected %v",
						center, scale, back.Data, coord.Data)
					break
				}
			}
		}
	}
}

func TestPlaneMembership(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 23)

	for _, center := range centerPolicies {
		for _, scale := range scalePolicies {
			p, err := New(vec0, vec1, vec2, center, scale)
			if err != nil {
				t.Fatalf("New(center=%q, scale=%q) failed: %v", center, scale, err)
			}

			for i, ref := range []*tensor.Tensor{vec0, vec1, vec2} {
				residual, err := p.Error(ref, 2)
				if err != nil {
					t.Fatalf("Error failed: %v", err)
				}
				if residual > 1e-7 {
					t.Errorf("center=%q scale=%q: vec%d residual = %g, expected ~0",
						center, scale, i, residual)
				}
			}
		}
	}
}

func TestOrthonormalBasis(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 31)

	for _, scale := range []ScalePolicy{ScaleL2Ortho, ScaleRMSOrtho} {
		p, err := New(vec0, vec1, vec2, CenterNone, scale)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		basis := p.Basis()
		// Accumulate basis^T basis and compare against I(2).
		var gram [2][2]float64
		for i := 0; i < p.Dim(); i++ {
			for a := 0; a < 2; a++ {
				for b := 0; b < 2; b++ {
					va, _ := basis.At(i, a)
					vb, _ := basis.At(i, b)
					gram[a][b] += va * vb
				}
			}
		}
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				want := 0.0
				if a == b {
					want = 1.0
				}
				if math.Abs(gram[a][b]-want) > 1e-9 {
					t.Errorf("scale=%q: basis^T basis[%d][%d] = %g, expected %g",
						scale, a, b, gram[a][b], want)
				}
			}
		}
	}
}

func TestRMSScalingProperty(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 64)

	p, err := New(vec0, vec1, vec2, CenterNone, ScaleRMSOrtho)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	coord := tensor.FromVec([]float64{1.3, -0.4})
	vec, err := p.Map(coord, false)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	if math.Abs(vec.RMS()-coord.RMS()) > 1e-9 {
		t.Errorf("mapped rms = %g, coordinate rms = %g, expected equal", vec.RMS(), coord.RMS())
	}
}

func TestErrorOrders(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 12)
	p, err := New(vec0, vec1, vec2, CenterMinNorm, ScaleL2Ortho)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// A vector off the plane has a positive residual under every order.
	off := vec0.Clone()
	rng := rand.New(rand.NewSource(7))
	for i := range off.Data {
		off.Data[i] += rng.NormFloat64()
	}

	l2, err := p.Error(off, 2)
	if err != nil {
		t.Fatalf("Error(2) failed: %v", err)
	}
	linf, err := p.Error(off, math.Inf(1))
	if err != nil {
		t.Fatalf("Error(inf) failed: %v", err)
	}
	rms, err := p.ErrorRMS(off)
	if err != nil {
		t.Fatalf("ErrorRMS failed: %v", err)
	}

	if l2 <= 0 || linf <= 0 || rms <= 0 {
		t.Errorf("residuals should be positive: l2=%g linf=%g rms=%g", l2, linf, rms)
	}
	if linf > l2 {
		t.Errorf("max-norm %g exceeds l2 norm %g", linf, l2)
	}
	if math.Abs(rms-l2/math.Sqrt(float64(p.Dim()))) > 1e-12 {
		t.Errorf("rms residual %g inconsistent with l2 %g", rms, l2)
	}
}

func TestApplyDispatch(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 9)
	p, err := New(vec0, vec1, vec2, CenterNone, ScaleL2Ortho)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Length D dispatches to Project.
	out, err := p.Apply(vec1, true)
	if err != nil {
		t.Fatalf("Apply(len=D) failed: %v", err)
	}
	if out.NumElems() != 2 {
		t.Errorf("Apply(len=D) returned %d elements, expected 2", out.NumElems())
	}

	// Length 2 dispatches to Map.
	out, err = p.Apply(tensor.FromVec([]float64{1, 0}), true)
	if err != nil {
		t.Fatalf("Apply(len=2) failed: %v", err)
	}
	if out.NumElems() != p.Dim() {
		t.Errorf("Apply(len=2) returned %d elements, expected %d", out.NumElems(), p.Dim())
	}

	// Anything else is ambiguous.
	_, err = p.Apply(tensor.FromVec([]float64{1, 2, 3}), true)
	var ambiguous *AmbiguousInputError
	if !errors.As(err, &ambiguous) {
		t.Errorf("Apply(len=3) error = %v, expected AmbiguousInputError", err)
	}
}

func TestConstructionErrors(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 6)

	matrix, err := tensor.Zeros([]int{2, 3})
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	_, err = New(matrix, vec1, vec2, CenterNone, ScaleNone)
	var shapeErr *InvalidShapeError
	if !errors.As(err, &shapeErr) {
		t.Errorf("multi-dimensional vec0 error = %v, expected InvalidShapeError", err)
	}

	_, err = New(vec0, vec1, vec2, CenterPolicy("median"), ScaleNone)
	var optErr *InvalidOptionError
	if !errors.As(err, &optErr) {
		t.Errorf("bad center error = %v, expected InvalidOptionError", err)
	} else if optErr.Arg != "center" {
		t.Errorf("bad center reported arg %q", optErr.Arg)
	}

	_, err = New(vec0, vec1, vec2, CenterNone, ScalePolicy("unit"))
	if !errors.As(err, &optErr) {
		t.Errorf("bad scale error = %v, expected InvalidOptionError", err)
	} else if optErr.Arg != "scale" {
		t.Errorf("bad scale reported arg %q", optErr.Arg)
	}

	_, err = New(vec0, vec1, tensor.FromVec([]float64{1, 2}), CenterNone, ScaleNone)
	if err == nil {
		t.Error("mismatched vector lengths should fail")
	}

	// "none" spelled out is accepted as the empty policy.
	if _, err := New(vec0, vec1, vec2, CenterPolicy("none"), ScalePolicy("none")); err != nil {
		t.Errorf("New with 'none' policies failed: %v", err)
	}
}

func TestMinNormCentering(t *testing.T) {
	vec0, vec1, vec2 := referenceVectors(t, 15)

	p, err := New(vec0, vec1, vec2, CenterMinNorm, ScaleNone)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// The new origin is the point on the plane closest to zero, so it must
	// be orthogonal to both basis directions.
	affine := p.Affine()
	basis := p.Basis()
	for a := 0; a < 2; a++ {
		var dot float64
		for i := 0; i < p.Dim(); i++ {
			b, _ := basis.At(i, a)
			dot += affine.Data[i] * b
		}
		if math.Abs(dot) > 1e-8 {
			t.Errorf("affine not orthogonal to basis column %d: dot = %g", a, dot)
		}
	}

	// The plane itself is unchanged: reference points still live on it.
	for i, ref := range []*tensor.Tensor{vec0, vec1, vec2} {
		residual, err := p.Error(ref, 2)
		if err != nil {
			t.Fatalf("Error failed: %v", err)
		}
		if residual > 1e-7 {
			t.Errorf("vec%d residual after minnorm = %g, expected ~0", i, residual)
		}
	}
}
