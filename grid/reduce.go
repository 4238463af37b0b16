package grid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/go-landscape/tensor"
)

// Record maps metric names to the scalars or small tensors computed at one
// grid coordinate. Every record of a run must carry the same key set.
type Record map[string]*tensor.Tensor

// ReduceMode selects how per-coordinate results are reassembled into the
// grid shape. Both modes produce identical tensors; they differ only in
// whether values are stacked after gathering or written into a
// pre-allocated tensor by flat index.
type ReduceMode string

const (
	ReduceStacked ReduceMode = "stacked"
	ReduceIndexed ReduceMode = "indexed"
)

// Reduce reassembles the ordered per-chunk result lists into one tensor per
// metric key of shape (len(X), len(Y), ...), with trailing singleton
// dimensions dropped. Chunk order plus intra-chunk order must reconstruct
// the builder's flattening order.
func Reduce(mode ReduceMode, chunks [][]Record, lenX, lenY int) (map[string]*tensor.Tensor, error) {
	switch mode {
	case ReduceStacked:
		return reduceStacked(chunks, lenX, lenY)
	case ReduceIndexed:
		return reduceIndexed(chunks, lenX, lenY)
	default:
		return nil, fmt.Errorf("unknown reduce mode '%s'", mode)
	}
}

func flatten(chunks [][]Record, want int) ([]Record, error) {
	records := make([]Record, 0, want)
	for _, chunk := range chunks {
		records = append(records, chunk...)
	}
	if len(records) != want {
		return nil, fmt.Errorf("expected %d records, got %d", want, len(records))
	}
	return records, nil
}

// reduceStacked gathers each key's values across all records into a list,
// stacks them and reshapes to matrix indexing.
func reduceStacked(chunks [][]Record, lenX, lenY int) (map[string]*tensor.Tensor, error) {
	records, err := flatten(chunks, lenX*lenY)
	if err != nil {
		return nil, err
	}

	gathered := make(map[string][]*tensor.Tensor)
	for i, rec := range records {
		for key, val := range rec {
			if i > 0 && gathered[key] == nil {
				return nil, fmt.Errorf("record %d introduces unknown key '%s'", i, key)
			}
			gathered[key] = append(gathered[key], val)
		}
		for key := range gathered {
			if len(gathered[key]) != i+1 {
				return nil, fmt.Errorf("record %d is missing key '%s'", i, key)
			}
		}
	}

	out := make(map[string]*tensor.Tensor, len(gathered))
	for key, values := range gathered {
		stacked, err := tensor.Stack(values)
		if err != nil {
			return nil, fmt.Errorf("failed to stack key '%s': %v", key, err)
		}
		reshaped, err := stacked.Reshape(lenX, lenY, -1)
		if err != nil {
			return nil, fmt.Errorf("failed to reshape key '%s': %v", key, err)
		}
		out[key] = reshaped.SqueezeTrailing()
	}
	return out, nil
}

// reduceIndexed pre-allocates one (lenX*lenY, dims...) tensor per key and
// fills it by flat record index.
func reduceIndexed(chunks [][]Record, lenX, lenY int) (map[string]*tensor.Tensor, error) {
	records, err := flatten(chunks, lenX*lenY)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*tensor.Tensor)
	elems := make(map[string]int)
	for idx, rec := range records {
		for key, val := range rec {
			dst, ok := out[key]
			if !ok {
				if idx > 0 {
					return nil, fmt.Errorf("record %d introduces unknown key '%s'", idx, key)
				}
				shape := append([]int{lenX * lenY}, val.Shape...)
				dst, err = tensor.Zeros(shape)
				if err != nil {
					return nil, fmt.Errorf("failed to allocate key '%s': %v", key, err)
				}
				out[key] = dst
				elems[key] = val.NumElems()
			}
			if val.NumElems() != elems[key] {
				return nil, fmt.Errorf("record %d key '%s' has %d elements, expected %d",
					idx, key, val.NumElems(), elems[key])
			}
			copy(dst.Data[idx*elems[key]:(idx+1)*elems[key]], val.Data)
		}
		if len(rec) != len(out) {
			return nil, fmt.Errorf("record %d carries %d keys, expected %d", idx, len(rec), len(out))
		}
	}

	for key, dst := range out {
		reshaped, err := dst.Reshape(lenX, lenY, -1)
		if err != nil {
			return nil, fmt.Errorf("failed to reshape key '%s': %v", key, err)
		}
		out[key] = reshaped.SqueezeTrailing()
	}
	return out, nil
}

// SaveResults persists one tensor artifact per metric key into dir. Path
// separators in keys are replaced by underscores for the filename. It
// returns the written paths keyed by metric.
func SaveResults(results map[string]*tensor.Tensor, dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir: %v", err)
	}

	paths := make(map[string]string, len(results))
	for key, val := range results {
		fname := filepath.Join(dir, strings.ReplaceAll(key, "/", "_")+".json")
		if err := val.Save(fname); err != nil {
			return nil, fmt.Errorf("failed to save key '%s': %v", key, err)
		}
		paths[key] = fname
	}
	return paths, nil
}
