package tensor

import (
	"encoding/json"
	"fmt"
	"os"
)

// Save writes the tensor to a JSON artifact at path.
func (t *Tensor) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tensor file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(t); err != nil {
		return fmt.Errorf("failed to encode tensor: %v", err)
	}
	return nil
}

// Load reads a tensor from a JSON artifact at path.
func Load(path string) (*Tensor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tensor file: %v", err)
	}
	defer file.Close()

	var t Tensor
	if err := json.NewDecoder(file).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode tensor: %v", err)
	}
	if err := validateShape(t.Shape); err != nil {
		return nil, fmt.Errorf("invalid tensor file %s: %v", path, err)
	}
	if len(t.Data) != calculateNumElements(t.Shape) {
		return nil, fmt.Errorf("invalid tensor file %s: %d values for shape %v", path, len(t.Data), t.Shape)
	}
	return &t, nil
}
