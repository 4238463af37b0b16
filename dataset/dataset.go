// Package dataset loads evaluation datasets and provides batched iteration
// over them.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsawler/go-landscape/tensor"
)

// DataRootEnv names the environment variable locating the dataset tree.
const DataRootEnv = "LANDSCAPE_DATA"

// Dataset is the minimal sample-access interface consumed by the loader.
type Dataset interface {
	Len() int
	Get(idx int) (input []float64, label int, err error)
	InputDim() int
	Classes() int
}

// InMemoryDataset holds a full split in host memory.
type InMemoryDataset struct {
	inputs  *tensor.Tensor // (n, input_dim)
	labels  []int
	classes int
}

// splitFile is the on-disk JSON layout of one dataset split.
type splitFile struct {
	Inputs  *tensor.Tensor `json:"inputs"`
	Labels  []int          `json:"labels"`
	Classes int            `json:"classes"`
}

// NewInMemoryDataset wraps pre-loaded inputs and labels.
func NewInMemoryDataset(inputs *tensor.Tensor, labels []int, classes int) (*InMemoryDataset, error) {
	if inputs.Dims() != 2 {
		return nil, fmt.Errorf("inputs must be 2D (n, input_dim), got shape %v", inputs.Shape)
	}
	if inputs.Shape[0] != len(labels) {
		return nil, fmt.Errorf("got %d inputs but %d labels", inputs.Shape[0], len(labels))
	}
	if classes <= 0 {
		return nil, fmt.Errorf("classes must be positive, got %d", classes)
	}
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d at index %d out of range [0, %d)", label, i, classes)
		}
	}
	return &InMemoryDataset{inputs: inputs, labels: labels, classes: classes}, nil
}

// Load reads one split ("train" or "valid") of the named dataset from the
// data root directory.
func Load(root, name, split string) (*InMemoryDataset, error) {
	path := filepath.Join(root, name, split+".json")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset split: %v", err)
	}
	defer file.Close()

	var sf splitFile
	if err := json.NewDecoder(file).Decode(&sf); err != nil {
		return nil, fmt.Errorf("failed to decode dataset split %s: %v", path, err)
	}
	if sf.Inputs == nil {
		return nil, fmt.Errorf("dataset split %s has no inputs", path)
	}
	return NewInMemoryDataset(sf.Inputs, sf.Labels, sf.Classes)
}

// Save writes the split as a JSON artifact, creating directories as needed.
func (ds *InMemoryDataset) Save(root, name, split string) error {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dataset dir: %v", err)
	}

	file, err := os.Create(filepath.Join(dir, split+".json"))
	if err != nil {
		return fmt.Errorf("failed to create dataset split: %v", err)
	}
	defer file.Close()

	sf := splitFile{Inputs: ds.inputs, Labels: ds.labels, Classes: ds.classes}
	if err := json.NewEncoder(file).Encode(&sf); err != nil {
		return fmt.Errorf("failed to encode dataset split: %v", err)
	}
	return nil
}

// Len returns the number of samples.
func (ds *InMemoryDataset) Len() int {
	return len(ds.labels)
}

// InputDim returns the per-sample feature dimension.
func (ds *InMemoryDataset) InputDim() int {
	return ds.inputs.Shape[1]
}

// Classes returns the number of label classes.
func (ds *InMemoryDataset) Classes() int {
	return ds.classes
}

// Get returns one sample. The input slice aliases the dataset storage and
// must not be mutated.
func (ds *InMemoryDataset) Get(idx int) ([]float64, int, error) {
	if idx < 0 || idx >= ds.Len() {
		return nil, 0, fmt.Errorf("sample index %d out of range [0, %d)", idx, ds.Len())
	}
	dim := ds.InputDim()
	return ds.inputs.Data[idx*dim : (idx+1)*dim], ds.labels[idx], nil
}
