package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsawler/go-landscape/landscape"
)

func chunkPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%04d.json", idx))
}

// SaveChunkResults persists one finished chunk's records so an interrupted
// run can resume without re-evaluating it.
func SaveChunkResults(dir string, idx int, results []landscape.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chunk dir: %v", err)
	}
	file, err := os.Create(chunkPath(dir, idx))
	if err != nil {
		return fmt.Errorf("failed to create chunk artifact: %v", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(results); err != nil {
		return fmt.Errorf("failed to encode chunk %d: %v", idx, err)
	}
	return nil
}

// LoadChunkResults reads a persisted chunk artifact.
func LoadChunkResults(dir string, idx int) ([]landscape.Result, error) {
	file, err := os.Open(chunkPath(dir, idx))
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk artifact: %v", err)
	}
	defer file.Close()

	var results []landscape.Result
	if err := json.NewDecoder(file).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode chunk %d: %v", idx, err)
	}
	return results, nil
}

// HasChunkResults reports whether chunk idx is already persisted.
func HasChunkResults(dir string, idx int) bool {
	_, err := os.Stat(chunkPath(dir, idx))
	return err == nil
}

// Gather collects per-chunk result lists in chunk order, blocking on each
// live job. Chunks without a live handle are read from their persisted
// artifact; freshly gathered chunks are persisted when dir is non-empty.
func Gather(numChunks int, handles map[int]JobHandle, dir string) ([][]landscape.Result, error) {
	out := make([][]landscape.Result, 0, numChunks)
	for idx := 0; idx < numChunks; idx++ {
		handle, ok := handles[idx]
		if !ok {
			if dir == "" {
				return nil, fmt.Errorf("no job or persisted results for chunk %d", idx)
			}
			results, err := LoadChunkResults(dir, idx)
			if err != nil {
				return nil, err
			}
			out = append(out, results)
			continue
		}

		results, err := handle.Results()
		if err != nil {
			return nil, err
		}
		if dir != "" {
			if err := SaveChunkResults(dir, idx, results); err != nil {
				return nil, err
			}
		}
		out = append(out, results)
	}
	return out, nil
}
