package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// WeightTensor represents a model parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight" or "bias"
}

// CheckpointMetadata contains checkpoint metadata.
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Checkpoint holds the teacher and student weight sets of one
// self-distillation training run.
type Checkpoint struct {
	Teacher  []WeightTensor     `json:"teacher"`
	Student  []WeightTensor     `json:"student"`
	Metadata CheckpointMetadata `json:"metadata"`
}

// SaveCheckpoint writes a checkpoint in JSON format.
func SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "go-landscape"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint from a JSON file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return &checkpoint, nil
}

// ExtractWeights extracts the model's parameters as named weight records.
func (m *Model) ExtractWeights() []WeightTensor {
	var weights []WeightTensor
	for i, l := range m.layers {
		layerName := fmt.Sprintf("dense%d", i)
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("%s.weight", layerName),
			Shape: []int{l.out, l.in},
			Data:  append([]float64{}, l.weight...),
			Layer: layerName,
			Type:  "weight",
		})
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("%s.bias", layerName),
			Shape: []int{l.out},
			Data:  append([]float64{}, l.bias...),
			Layer: layerName,
			Type:  "bias",
		})
	}
	return weights
}

// LoadWeights loads named weight records back into the model. Records must
// be in extraction order with matching shapes.
func (m *Model) LoadWeights(weights []WeightTensor) error {
	if len(weights) != 2*len(m.layers) {
		return fmt.Errorf("weight count mismatch: %d records, %d layers", len(weights), len(m.layers))
	}

	for i := range m.layers {
		l := &m.layers[i]
		w, b := weights[2*i], weights[2*i+1]

		if len(w.Shape) != 2 || w.Shape[0] != l.out || w.Shape[1] != l.in {
			return fmt.Errorf("shape mismatch for %s: got %v, expected [%d %d]", w.Name, w.Shape, l.out, l.in)
		}
		if len(w.Data) != l.out*l.in {
			return fmt.Errorf("data length mismatch for %s: got %d values", w.Name, len(w.Data))
		}
		if len(b.Shape) != 1 || b.Shape[0] != l.out {
			return fmt.Errorf("shape mismatch for %s: got %v, expected [%d]", b.Name, b.Shape, l.out)
		}
		if len(b.Data) != l.out {
			return fmt.Errorf("data length mismatch for %s: got %d values", b.Name, len(b.Data))
		}

		copy(l.weight, w.Data)
		copy(l.bias, b.Data)
	}
	return nil
}

// LoadModel resolves a checkpoint identifier to a materialized model. When
// cfg is nil, the config artifact colocated with the checkpoint is loaded.
// An .init suffix on the identifier replaces the checkpoint weights with a
// deterministic re-initialization seeded from the config.
func LoadModel(identifier string, cfg *Config) (*Model, error) {
	id, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		cfg, err = ConfigFromJSON(ConfigPathFor(id.Path))
		if err != nil {
			return nil, err
		}
	}

	m, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}

	checkpoint, err := LoadCheckpoint(id.Path)
	if err != nil {
		return nil, err
	}

	weights := checkpoint.Teacher
	if id.Role == RoleStudent {
		weights = checkpoint.Student
	}
	if err := m.LoadWeights(weights); err != nil {
		return nil, fmt.Errorf("failed to load %s weights: %v", id.Role, err)
	}

	if id.Init {
		m.Reinit(cfg.InitSeed)
	}
	return m, nil
}
