// Package model materializes encoder+head models from checkpoint artifacts
// and bridges between full parameter sets and flat parameter vectors.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config describes the model architecture and dataset of a training run.
// It is stored as a config.json artifact next to each checkpoint.
type Config struct {
	InputDim    int    `json:"input_dim"`
	EncoderDims []int  `json:"encoder_dims,omitempty"` // hidden sizes of the encoder
	EmbedDim    int    `json:"embed_dim"`
	HeadDims    []int  `json:"head_dims,omitempty"` // hidden sizes of the projection head
	OutDim      int    `json:"out_dim"`
	Dataset     string `json:"dataset"`
	Classes     int    `json:"ds_classes"`
	InitSeed    int64  `json:"init_seed,omitempty"`
}

// ConfigFromJSON loads a model configuration from a JSON artifact.
func ConfigFromJSON(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %v", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %v", path, err)
	}
	return &cfg, nil
}

// ConfigPathFor returns the path of the config artifact colocated with the
// given checkpoint file.
func ConfigPathFor(checkpointPath string) string {
	return filepath.Join(filepath.Dir(checkpointPath), "config.json")
}

// Validate checks the configuration for structural consistency.
func (c *Config) Validate() error {
	if c.InputDim <= 0 {
		return fmt.Errorf("input_dim must be positive, got %d", c.InputDim)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("embed_dim must be positive, got %d", c.EmbedDim)
	}
	if c.OutDim <= 0 {
		return fmt.Errorf("out_dim must be positive, got %d", c.OutDim)
	}
	if c.Classes <= 0 {
		return fmt.Errorf("ds_classes must be positive, got %d", c.Classes)
	}
	for i, dim := range c.EncoderDims {
		if dim <= 0 {
			return fmt.Errorf("encoder_dims[%d] must be positive, got %d", i, dim)
		}
	}
	for i, dim := range c.HeadDims {
		if dim <= 0 {
			return fmt.Errorf("head_dims[%d] must be positive, got %d", i, dim)
		}
	}
	return nil
}

// Save writes the configuration as a JSON artifact.
func (c *Config) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	return nil
}
