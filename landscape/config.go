// Package landscape evaluates model quality over coordinate chunks of a
// two-dimensional slice through parameter space.
package landscape

import (
	"fmt"

	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/projector"
)

// LossMode selects which divergence metrics one evaluation records. The
// empty mode records all four (MSE, CE, KL, H) per split; a single-loss
// mode records one train/loss and valid/loss pair.
type LossMode string

const (
	LossAll LossMode = ""
	LossMSE LossMode = "MSE"
	LossCE  LossMode = "CE"
)

// Result holds the metrics recorded for one evaluated coordinate.
type Result = grid.Record

// ProgressFunc receives the number of completed coordinates out of the
// chunk total after each coordinate finishes.
type ProgressFunc func(done, total int)

// EvalConfig is the shared per-job configuration for chunk evaluation.
type EvalConfig struct {
	Vec0 string `json:"vec0"` // reference checkpoint, supplies the config artifact
	Vec1 string `json:"vec1"`
	Vec2 string `json:"vec2"`

	Center projector.CenterPolicy `json:"projector_center"`
	Scale  projector.ScalePolicy  `json:"projector_scale"`

	Batchsize     int      `json:"batchsize"`
	ProbingEpochs int      `json:"probing_epochs"`
	ProbingK      int      `json:"probing_k"`
	ProberSeed    int64    `json:"prober_seed"`
	Loss          LossMode `json:"loss"`

	NumWorkers int  `json:"num_workers"`
	ForceCPU   bool `json:"force_cpu"`
}

// Validate checks the configuration before any model loading happens.
func (c *EvalConfig) Validate() error {
	if c.Vec0 == "" || c.Vec1 == "" || c.Vec2 == "" {
		return fmt.Errorf("all three checkpoint identifiers are required")
	}
	if c.Batchsize <= 0 {
		return fmt.Errorf("batchsize must be positive, got %d", c.Batchsize)
	}
	switch c.Loss {
	case LossAll, LossMSE, LossCE:
	default:
		return fmt.Errorf("unknown loss mode '%s'", c.Loss)
	}
	return nil
}
