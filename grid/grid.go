// Package grid produces the rectangular coordinate lattice evaluated on the
// parameter plane and reassembles per-coordinate results into matrix-indexed
// tensors.
package grid

import (
	"fmt"
	"math"
)

// Coord identifies a point (x, y) on the plane.
type Coord [2]float64

// Plan holds the coordinate lattice for one evaluation run: the axis
// sequences, the chunked flattened coordinates, and the shape needed to
// reduce results back into matrix indexing.
type Plan struct {
	X      []float64
	Y      []float64
	Chunks [][]Coord
}

// Shape returns the grid shape (len(X), len(Y)).
func (p *Plan) Shape() (int, int) {
	return len(p.X), len(p.Y)
}

// NumCoords returns the total number of grid coordinates.
func (p *Plan) NumCoords() int {
	return len(p.X) * len(p.Y)
}

// Build constructs the lattice with matrix indexing: grid[i,j] = (X[i], Y[j]),
// X varying along the first axis. The flattened row-major coordinate list is
// split into numJobs contiguous chunks of near-equal size; empty chunks are
// dropped.
func Build(xmin, xmax, ymin, ymax, stepsize float64, numJobs int) (*Plan, error) {
	if stepsize <= 0 {
		return nil, fmt.Errorf("stepsize must be positive, got %g", stepsize)
	}
	if xmax < xmin || ymax < ymin {
		return nil, fmt.Errorf("invalid bounds: x=[%g, %g] y=[%g, %g]", xmin, xmax, ymin, ymax)
	}
	if numJobs <= 0 {
		return nil, fmt.Errorf("num jobs must be positive, got %d", numJobs)
	}

	x := sequence(xmin, xmax, stepsize)
	y := sequence(ymin, ymax, stepsize)

	coords := make([]Coord, 0, len(x)*len(y))
	for i := range x {
		for j := range y {
			coords = append(coords, Coord{x[i], y[j]})
		}
	}

	return &Plan{X: x, Y: y, Chunks: split(coords, numJobs)}, nil
}

// sequence returns min, min+step, ... with every point strictly below
// max+step, tolerating float rounding. A step that does not divide the
// range yields a final point past max.
func sequence(min, max, step float64) []float64 {
	n := int(math.Ceil((max+step-min)/step - 1e-9))
	values := make([]float64, n)
	for i := range values {
		values[i] = min + float64(i)*step
	}
	return values
}

// split partitions coords into n contiguous chunks. The first len(coords)%n
// chunks receive one extra element; empty chunks are dropped.
func split(coords []Coord, n int) [][]Coord {
	if n > len(coords) {
		n = len(coords)
	}
	base := len(coords) / n
	extra := len(coords) % n

	chunks := make([][]Coord, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, coords[pos:pos+size])
		pos += size
	}
	return chunks
}
