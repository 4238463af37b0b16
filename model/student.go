package model

import (
	"sync"

	"github.com/tsawler/go-landscape/tensor"
)

// StudentHandle is the single-owner mutable handle for the evaluation
// target model. Grid coordinates are evaluated by repeatedly loading a new
// parameter vector into the same model instance, so the loop that owns the
// handle must process coordinates strictly sequentially. The handle must
// not be copied and must not be shared across goroutines; its internal
// mutex serializes accidental concurrent use instead of racing, but
// correct ownership is one holder at a time.
type StudentHandle struct {
	mu    sync.Mutex
	model *Model
}

// NewStudent clones the teacher into a fresh evaluation target and
// transfers ownership of the clone to the returned handle.
func NewStudent(teacher *Model) *StudentHandle {
	return &StudentHandle{model: teacher.Clone()}
}

// LoadVector loads a flat parameter vector into the student in place.
func (h *StudentHandle) LoadVector(vec *tensor.Tensor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model.LoadParamVector(vec)
}

// Forward runs a gradient-free pass with the currently loaded parameters.
func (h *StudentHandle) Forward(batch *tensor.Tensor) (*Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model.Forward(batch)
}

// NumParams returns the student's parameter count.
func (h *StudentHandle) NumParams() int {
	return h.model.NumParams()
}
