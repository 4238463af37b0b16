package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tsawler/go-landscape/tensor"
)

// Output holds the results of a forward pass over one batch.
type Output struct {
	Logits     *tensor.Tensor // (batch, out_dim)
	Embeddings *tensor.Tensor // (batch, embed_dim)
}

// denseLayer is a fully connected layer with row-major (out x in) weights.
type denseLayer struct {
	in, out int
	weight  []float64
	bias    []float64
	relu    bool // apply ReLU to the layer output
}

// Model is an encoder followed by a projection head, materialized as dense
// float64 weights. Forward passes are gradient-free; the model exists to be
// evaluated at points of the parameter plane.
type Model struct {
	cfg       *Config
	layers    []denseLayer
	numEncode int // layers [0, numEncode) form the encoder
}

// NewModel builds an uninitialized (zero-weight) model for the given
// architecture. Encoder: input -> encoder_dims... -> embed_dim. Head:
// embed_dim -> head_dims... -> out_dim. Hidden layers use ReLU; the
// embedding and logit outputs are linear.
func NewModel(cfg *Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var layers []denseLayer
	addStack := func(dims []int) {
		for i := 0; i < len(dims)-1; i++ {
			layers = append(layers, denseLayer{
				in:     dims[i],
				out:    dims[i+1],
				weight: make([]float64, dims[i+1]*dims[i]),
				bias:   make([]float64, dims[i+1]),
				relu:   i < len(dims)-2,
			})
		}
	}

	encoderDims := append([]int{cfg.InputDim}, cfg.EncoderDims...)
	encoderDims = append(encoderDims, cfg.EmbedDim)
	addStack(encoderDims)
	numEncode := len(layers)

	headDims := append([]int{cfg.EmbedDim}, cfg.HeadDims...)
	headDims = append(headDims, cfg.OutDim)
	addStack(headDims)

	return &Model{cfg: cfg, layers: layers, numEncode: numEncode}, nil
}

// Config returns the architecture configuration.
func (m *Model) Config() *Config {
	return m.cfg
}

// NumParams returns the total parameter count D.
func (m *Model) NumParams() int {
	total := 0
	for _, l := range m.layers {
		total += len(l.weight) + len(l.bias)
	}
	return total
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	clone := &Model{cfg: m.cfg, numEncode: m.numEncode}
	clone.layers = make([]denseLayer, len(m.layers))
	for i, l := range m.layers {
		clone.layers[i] = denseLayer{
			in:     l.in,
			out:    l.out,
			weight: append([]float64{}, l.weight...),
			bias:   append([]float64{}, l.bias...),
			relu:   l.relu,
		}
	}
	return clone
}

// Reinit deterministically re-initializes all weights from the given seed,
// using scaled uniform initialization. Two models re-initialized from the
// same seed are identical.
func (m *Model) Reinit(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.layers {
		l := &m.layers[i]
		bound := 1.0 / math.Sqrt(float64(l.in))
		for j := range l.weight {
			l.weight[j] = (rng.Float64()*2 - 1) * bound
		}
		for j := range l.bias {
			l.bias[j] = (rng.Float64()*2 - 1) * bound
		}
	}
}

// Forward runs one gradient-free pass over a (batch, input_dim) tensor and
// returns logits and embeddings.
func (m *Model) Forward(batch *tensor.Tensor) (*Output, error) {
	if batch.Dims() != 2 || batch.Shape[1] != m.cfg.InputDim {
		return nil, fmt.Errorf("expected batch of shape (n, %d), got %v", m.cfg.InputDim, batch.Shape)
	}
	n := batch.Shape[0]

	activations := batch.Data
	width := m.cfg.InputDim
	var embeddings []float64

	for li, l := range m.layers {
		next := make([]float64, n*l.out)
		for b := 0; b < n; b++ {
			in := activations[b*width : (b+1)*width]
			out := next[b*l.out : (b+1)*l.out]
			for o := 0; o < l.out; o++ {
				sum := l.bias[o]
				row := l.weight[o*l.in : (o+1)*l.in]
				for i, v := range in {
					sum += row[i] * v
				}
				if l.relu && sum < 0 {
					sum = 0
				}
				out[o] = sum
			}
		}
		activations = next
		width = l.out

		if li == m.numEncode-1 {
			embeddings = append([]float64{}, activations...)
		}
	}

	logits, err := tensor.New([]int{n, m.cfg.OutDim}, activations)
	if err != nil {
		return nil, err
	}
	embed, err := tensor.New([]int{n, m.cfg.EmbedDim}, embeddings)
	if err != nil {
		return nil, err
	}
	return &Output{Logits: logits, Embeddings: embed}, nil
}

// ParamVector flattens all parameters into a single 1D tensor, layer by
// layer, weights before biases. The order is deterministic and shared with
// LoadParamVector.
func (m *Model) ParamVector() *tensor.Tensor {
	data := make([]float64, 0, m.NumParams())
	for _, l := range m.layers {
		data = append(data, l.weight...)
		data = append(data, l.bias...)
	}
	return tensor.FromVec(data)
}

// LoadParamVector loads a flat parameter vector into the model in place.
// The vector length must equal NumParams.
func (m *Model) LoadParamVector(vec *tensor.Tensor) error {
	if vec.Dims() != 1 {
		return fmt.Errorf("parameter vector must be 1D, got shape %v", vec.Shape)
	}
	if vec.NumElems() != m.NumParams() {
		return fmt.Errorf("parameter count mismatch: vector has %d, model has %d",
			vec.NumElems(), m.NumParams())
	}

	pos := 0
	for i := range m.layers {
		l := &m.layers[i]
		copy(l.weight, vec.Data[pos:pos+len(l.weight)])
		pos += len(l.weight)
		copy(l.bias, vec.Data[pos:pos+len(l.bias)])
		pos += len(l.bias)
	}
	return nil
}
