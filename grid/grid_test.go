package grid

import (
	"math"
	"reflect"
	"testing"
)

func TestBuildScenario(t *testing.T) {
	// xmin=0 xmax=1 ymin=0 ymax=1 step=1 num_jobs=1 -> X=[0,1], Y=[0,1],
	// 4 coordinates, one chunk of size 4.
	plan, err := Build(0, 1, 0, 1, 1, 1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !reflect.DeepEqual(plan.X, []float64{0, 1}) {
		t.Errorf("X = %v, expected [0 1]", plan.X)
	}
	if !reflect.DeepEqual(plan.Y, []float64{0, 1}) {
		t.Errorf("Y = %v, expected [0 1]", plan.Y)
	}
	if plan.NumCoords() != 4 {
		t.Errorf("NumCoords = %d, expected 4", plan.NumCoords())
	}
	if len(plan.Chunks) != 1 {
		t.Fatalf("chunks = %d, expected 1", len(plan.Chunks))
	}
	expected := []Coord{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	if !reflect.DeepEqual(plan.Chunks[0], expected) {
		t.Errorf("chunk = %v, expected %v (X-major order)", plan.Chunks[0], expected)
	}
}

func TestBuildDeterminism(t *testing.T) {
	a, err := Build(-1, 1, -0.5, 0.5, 0.25, 3)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, err := Build(-1, 1, -0.5, 0.5, 0.25, 3)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical bounds must yield identical plans")
	}
}

func TestBuildRoundingTolerance(t *testing.T) {
	// 0.1 steps accumulate float error; the endpoint must still be included.
	plan, err := Build(0, 1, 0, 1, 0.1, 1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(plan.X) != 11 {
		t.Errorf("len(X) = %d, expected 11", len(plan.X))
	}
	last := plan.X[len(plan.X)-1]
	if math.Abs(last-1.0) > 1e-9 {
		t.Errorf("last X = %g, expected ~1.0", last)
	}
}

func TestBuildNonDivisibleStep(t *testing.T) {
	// Points advance while strictly below max+step, so a step that does not
	// divide the range keeps one point past the bound instead of dropping it.
	plan, err := Build(0, 1, 0, 1, 0.4, 1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []float64{0, 0.4, 0.8, 1.2}
	if len(plan.X) != len(want) {
		t.Fatalf("len(X) = %d, expected %d", len(plan.X), len(want))
	}
	for i, x := range plan.X {
		if math.Abs(x-want[i]) > 1e-9 {
			t.Errorf("X[%d] = %g, expected %g", i, x, want[i])
		}
	}
	if !reflect.DeepEqual(plan.X, plan.Y) {
		t.Error("identical bounds must yield identical axes")
	}
	if plan.NumCoords() != 16 {
		t.Errorf("NumCoords = %d, expected 16", plan.NumCoords())
	}
}

func TestChunkSizes(t *testing.T) {
	tests := []struct {
		numJobs   int
		numCoords int
		sizes     []int
	}{
		{1, 9, []int{9}},
		{2, 9, []int{5, 4}},
		{4, 9, []int{3, 2, 2, 2}},
		{9, 9, []int{1, 1, 1, 1, 1, 1, 1, 1, 1}},
		{20, 9, []int{1, 1, 1, 1, 1, 1, 1, 1, 1}}, // empty chunks dropped
	}

	for _, test := range tests {
		plan, err := Build(0, 2, 0, 2, 1, test.numJobs)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if plan.NumCoords() != test.numCoords {
			t.Fatalf("NumCoords = %d, expected %d", plan.NumCoords(), test.numCoords)
		}

		var sizes []int
		total := 0
		for _, chunk := range plan.Chunks {
			if len(chunk) == 0 {
				t.Errorf("numJobs=%d produced an empty chunk", test.numJobs)
			}
			sizes = append(sizes, len(chunk))
			total += len(chunk)
		}
		if total != test.numCoords {
			t.Errorf("numJobs=%d: chunk sizes sum to %d, expected %d", test.numJobs, total, test.numCoords)
		}
		if !reflect.DeepEqual(sizes, test.sizes) {
			t.Errorf("numJobs=%d: chunk sizes = %v, expected %v", test.numJobs, sizes, test.sizes)
		}
	}
}

func TestBuildValidation(t *testing.T) {
	if _, err := Build(0, 1, 0, 1, 0, 1); err == nil {
		t.Error("zero stepsize should fail")
	}
	if _, err := Build(1, 0, 0, 1, 0.5, 1); err == nil {
		t.Error("xmax < xmin should fail")
	}
	if _, err := Build(0, 1, 0, 1, 0.5, 0); err == nil {
		t.Error("zero jobs should fail")
	}
}
