package dataset

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/tsawler/go-landscape/tensor"
)

// Batch represents a batch of inputs and labels.
type Batch struct {
	Inputs *tensor.Tensor // (batch, input_dim)
	Labels []int
}

// DataLoader provides batched iteration over a dataset. Evaluation passes
// iterate in deterministic order; shuffling is optional. Sample decode
// within a batch is spread across the configured workers.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	workers   int
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a loader over dataset with the given batch size.
// Workers below one default to serial decode.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, workers int) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if workers <= 0 {
		workers = 1
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		workers:   workers,
		indices:   indices,
	}, nil
}

// Len returns the number of batches in an epoch.
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new epoch.
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0
	if dl.shuffle {
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := rand.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// HasNext returns true if there are more batches in the current epoch.
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// Next returns the next batch, or nil at the end of the epoch.
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, nil
	}

	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}
	batchIndices := dl.indices[dl.position:batchEnd]
	dl.position = batchEnd

	dim := dl.dataset.InputDim()
	inputs := make([]float64, len(batchIndices)*dim)
	labels := make([]int, len(batchIndices))
	if err := dl.decode(batchIndices, inputs, labels, dim); err != nil {
		return nil, err
	}

	batched, err := tensor.New([]int{len(batchIndices), dim}, inputs)
	if err != nil {
		return nil, err
	}
	return &Batch{Inputs: batched, Labels: labels}, nil
}

// decode fills the batch buffers, splitting the work across the configured
// workers. Each worker owns a disjoint index range, so the buffers need no
// locking and the result is identical to serial decode.
func (dl *DataLoader) decode(batchIndices []int, inputs []float64, labels []int, dim int) error {
	workers := dl.workers
	if workers > len(batchIndices) {
		workers = len(batchIndices)
	}
	if workers <= 1 {
		return dl.decodeRange(batchIndices, inputs, labels, dim, 0, len(batchIndices))
	}

	per := (len(batchIndices) + workers - 1) / workers
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		end := start + per
		if end > len(batchIndices) {
			end = len(batchIndices)
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			errs[w] = dl.decodeRange(batchIndices, inputs, labels, dim, start, end)
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (dl *DataLoader) decodeRange(batchIndices []int, inputs []float64, labels []int, dim, start, end int) error {
	for i := start; i < end; i++ {
		sample, label, err := dl.dataset.Get(batchIndices[i])
		if err != nil {
			return fmt.Errorf("failed to load sample %d: %v", batchIndices[i], err)
		}
		copy(inputs[i*dim:(i+1)*dim], sample)
		labels[i] = label
	}
	return nil
}
