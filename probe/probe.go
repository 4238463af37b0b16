// Package probe measures representation quality of collected embeddings
// with linear and k-nearest-neighbor classification analyses.
package probe

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Sample pairs one embedding with its class label.
type Sample struct {
	Embedding []float64
	Label     int
}

// Analysis evaluates one representation-quality metric on embedding data.
type Analysis interface {
	Name() string
	Eval(train, valid []Sample, classes int, rng *rand.Rand) (float64, error)
}

// Prober runs a configured set of analyses over collected embeddings.
type Prober struct {
	analyses []Analysis
	classes  int
	seed     int64
}

// NewProber builds a prober for the given class count. A linear analysis is
// included only when probingEpochs is positive, a kNN analysis only when
// probingK is positive.
func NewProber(probingEpochs, probingK, classes int, seed int64) *Prober {
	var analyses []Analysis
	if probingEpochs > 0 {
		analyses = append(analyses, &LinearAnalysis{Epochs: probingEpochs})
	}
	if probingK > 0 {
		analyses = append(analyses, &KNNAnalysis{K: probingK})
	}
	return &Prober{analyses: analyses, classes: classes, seed: seed}
}

// EvalProbe runs every configured analysis and returns named metrics.
// Analyses are deterministic for a fixed prober seed.
func (p *Prober) EvalProbe(train, valid []Sample) (map[string]float64, error) {
	out := make(map[string]float64, len(p.analyses))
	for _, analysis := range p.analyses {
		rng := rand.New(rand.NewSource(p.seed))
		val, err := analysis.Eval(train, valid, p.classes, rng)
		if err != nil {
			return nil, fmt.Errorf("analysis %s failed: %v", analysis.Name(), err)
		}
		out[analysis.Name()] = val
	}
	return out, nil
}

// LinearAnalysis trains a softmax-regression classifier on the training
// embeddings for a fixed number of epochs and reports validation accuracy.
type LinearAnalysis struct {
	Epochs int
	LR     float64 // defaults to 0.1
}

func (a *LinearAnalysis) Name() string { return "lin" }

func (a *LinearAnalysis) Eval(train, valid []Sample, classes int, rng *rand.Rand) (float64, error) {
	if len(train) == 0 || len(valid) == 0 {
		return 0, fmt.Errorf("empty probe data: %d train, %d valid", len(train), len(valid))
	}
	dim := len(train[0].Embedding)
	lr := a.LR
	if lr <= 0 {
		lr = 0.1
	}

	// Zero-initialized classifier; per-sample SGD with a shuffled order.
	weight := make([]float64, classes*dim)
	bias := make([]float64, classes)
	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	probs := make([]float64, classes)
	for epoch := 0; epoch < a.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			s := train[idx]
			if len(s.Embedding) != dim {
				return 0, fmt.Errorf("embedding size %d, expected %d", len(s.Embedding), dim)
			}
			softmaxLogits(weight, bias, s.Embedding, probs)
			for c := 0; c < classes; c++ {
				grad := probs[c]
				if c == s.Label {
					grad -= 1
				}
				row := weight[c*dim : (c+1)*dim]
				for j, v := range s.Embedding {
					row[j] -= lr * grad * v
				}
				bias[c] -= lr * grad
			}
		}
	}

	correct := 0
	for _, s := range valid {
		softmaxLogits(weight, bias, s.Embedding, probs)
		best := 0
		for c := 1; c < classes; c++ {
			if probs[c] > probs[best] {
				best = c
			}
		}
		if best == s.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(valid)), nil
}

// softmaxLogits fills probs with softmax(weight*x + bias).
func softmaxLogits(weight, bias, x, probs []float64) {
	classes := len(bias)
	dim := len(x)
	max := math.Inf(-1)
	for c := 0; c < classes; c++ {
		sum := bias[c]
		row := weight[c*dim : (c+1)*dim]
		for j, v := range x {
			sum += row[j] * v
		}
		probs[c] = sum
		if sum > max {
			max = sum
		}
	}
	var total float64
	for c := range probs {
		probs[c] = math.Exp(probs[c] - max)
		total += probs[c]
	}
	for c := range probs {
		probs[c] /= total
	}
}

// KNNAnalysis classifies each validation embedding by majority vote among
// its K nearest training embeddings and reports accuracy.
type KNNAnalysis struct {
	K int
}

func (a *KNNAnalysis) Name() string { return "knn" }

func (a *KNNAnalysis) Eval(train, valid []Sample, classes int, rng *rand.Rand) (float64, error) {
	if len(train) == 0 || len(valid) == 0 {
		return 0, fmt.Errorf("empty probe data: %d train, %d valid", len(train), len(valid))
	}
	k := a.K
	if k > len(train) {
		k = len(train)
	}

	type neighbor struct {
		dist  float64
		label int
	}

	correct := 0
	neighbors := make([]neighbor, len(train))
	votes := make([]int, classes)
	for _, s := range valid {
		for i, t := range train {
			var d float64
			for j, v := range t.Embedding {
				diff := v - s.Embedding[j]
				d += diff * diff
			}
			neighbors[i] = neighbor{dist: d, label: t.Label}
		}
		sort.Slice(neighbors, func(i, j int) bool {
			if neighbors[i].dist != neighbors[j].dist {
				return neighbors[i].dist < neighbors[j].dist
			}
			return neighbors[i].label < neighbors[j].label
		})

		for c := range votes {
			votes[c] = 0
		}
		for i := 0; i < k; i++ {
			votes[neighbors[i].label]++
		}
		best := 0
		for c := 1; c < classes; c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		if best == s.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(valid)), nil
}

// NormalizeData standardizes embeddings in place, per dimension, using the
// training-split statistics for both splits.
func NormalizeData(train, valid []Sample) {
	if len(train) == 0 {
		return
	}
	dim := len(train[0].Embedding)

	mean := make([]float64, dim)
	for _, s := range train {
		for j, v := range s.Embedding {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(train))
	}

	std := make([]float64, dim)
	for _, s := range train {
		for j, v := range s.Embedding {
			diff := v - mean[j]
			std[j] += diff * diff
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(train)))
		if std[j] == 0 {
			std[j] = 1
		}
	}

	apply := func(samples []Sample) {
		for _, s := range samples {
			for j := range s.Embedding {
				s.Embedding[j] = (s.Embedding[j] - mean[j]) / std[j]
			}
		}
	}
	apply(train)
	apply(valid)
}
