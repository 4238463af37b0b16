package projector

import (
	"fmt"
)

// InvalidShapeError reports reference vectors that are not one-dimensional.
type InvalidShapeError struct {
	Dims []int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("vectors need to be 1D, but are of dims %v", e.Dims)
}

// InvalidOptionError reports an unrecognized center or scale policy.
type InvalidOptionError struct {
	Arg   string
	Value string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("unknown option '%s' for argument '%s'", e.Value, e.Arg)
}

// AmbiguousInputError reports an input whose length matches neither the
// parameter dimension nor the plane dimension.
type AmbiguousInputError struct {
	Len int
	Dim int
}

func (e *AmbiguousInputError) Error() string {
	return fmt.Sprintf("cannot infer whether to project or map input of length %d (dim=%d)", e.Len, e.Dim)
}
