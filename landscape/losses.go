package landscape

import (
	"fmt"
	"math"

	"github.com/tsawler/go-landscape/tensor"
)

// lossAccumulator sums per-sample divergences between student and teacher
// logits across batches. Sums are normalized by the example count when the
// split finishes.
type lossAccumulator struct {
	mode  LossMode
	sums  map[string]float64
	numel int

	// scratch buffers, sized on first use
	sLog   []float64
	tLog   []float64
	tProbs []float64
}

func newLossAccumulator(mode LossMode) *lossAccumulator {
	return &lossAccumulator{mode: mode, sums: make(map[string]float64)}
}

// Update accumulates losses for one batch of logits, shape (n, dim) each.
func (a *lossAccumulator) Update(studentLogits, teacherLogits *tensor.Tensor) error {
	if studentLogits.Dims() != 2 || teacherLogits.Dims() != 2 {
		return fmt.Errorf("logits must be 2D, got %dD and %dD", studentLogits.Dims(), teacherLogits.Dims())
	}
	n, dim := studentLogits.Shape[0], studentLogits.Shape[1]
	if teacherLogits.Shape[0] != n || teacherLogits.Shape[1] != dim {
		return fmt.Errorf("logit shape mismatch: %v vs %v", studentLogits.Shape, teacherLogits.Shape)
	}
	if len(a.sLog) < dim {
		a.sLog = make([]float64, dim)
		a.tLog = make([]float64, dim)
		a.tProbs = make([]float64, dim)
	}

	for i := 0; i < n; i++ {
		s := studentLogits.Data[i*dim : (i+1)*dim]
		t := teacherLogits.Data[i*dim : (i+1)*dim]

		switch a.mode {
		case LossMSE:
			a.sums["loss"] += meanSquared(s, t)
		case LossCE:
			logSoftmaxRow(s, a.sLog[:dim])
			logSoftmaxRow(t, a.tLog[:dim])
			a.sums["loss"] += crossEntropyRow(a.sLog[:dim], a.tLog[:dim], a.tProbs[:dim])
		default:
			logSoftmaxRow(s, a.sLog[:dim])
			logSoftmaxRow(t, a.tLog[:dim])
			ce := crossEntropyRow(a.sLog[:dim], a.tLog[:dim], a.tProbs[:dim])

			a.sums["MSE"] += meanSquared(s, t)
			a.sums["CE"] += ce
			// KL(teacher || student) = CE minus the teacher entropy.
			var hTeacher, hStudent float64
			for c := 0; c < dim; c++ {
				hTeacher -= a.tProbs[c] * a.tLog[c]
				hStudent -= math.Exp(a.sLog[c]) * a.sLog[c]
			}
			a.sums["KL"] += ce - hTeacher
			a.sums["H"] += hStudent
		}
	}
	a.numel += n
	return nil
}

// Averages returns the accumulated sums normalized by the example count.
func (a *lossAccumulator) Averages() (map[string]float64, error) {
	if a.numel == 0 {
		return nil, fmt.Errorf("no examples accumulated")
	}
	out := make(map[string]float64, len(a.sums))
	for name, sum := range a.sums {
		out[name] = sum / float64(a.numel)
	}
	return out, nil
}

// meanSquared is the squared difference averaged over output dimensions.
func meanSquared(a, b []float64) float64 {
	var sum float64
	for i, v := range a {
		diff := v - b[i]
		sum += diff * diff
	}
	return sum / float64(len(a))
}

func logSoftmaxRow(logits, out []float64) {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	var total float64
	for _, v := range logits {
		total += math.Exp(v - max)
	}
	logTotal := math.Log(total)
	for i, v := range logits {
		out[i] = v - max - logTotal
	}
}

// crossEntropyRow computes -sum(softmax(teacher) * logsoftmax(student)) and
// fills tProbs with the teacher probabilities as a side effect.
func crossEntropyRow(sLog, tLog, tProbs []float64) float64 {
	var ce float64
	for i, lt := range tLog {
		tProbs[i] = math.Exp(lt)
		ce -= tProbs[i] * sLog[i]
	}
	return ce
}
