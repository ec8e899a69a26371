package lightfield

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/tsawler/go-lfca/tensor"
)

// DataLoader provides batching and per-epoch shuffling over a Dataset. The
// final batch of an epoch is short when the dataset length is not a multiple
// of the batch size.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a new DataLoader. rng is only used when shuffle is set.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if dataset.Len() <= 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling requires a random source")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		indices:   indices,
	}, nil
}

// Batch is a stacked set of samples shaped [B, u, v, c, x, y].
type Batch struct {
	LF      *tensor.Tensor
	Indices []int
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int {
	return len(b.Indices)
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new epoch, reshuffling when enabled.
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Next returns the next batch or nil if epoch is complete
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
	batchIndices := append([]int(nil), dl.indices[dl.position:batchEnd]...)
	dl.position = batchEnd

	batch, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	return batch, nil
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}

	var data []float32
	var sampleShape []int
	for i, idx := range indices {
		sample, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %w", idx, err)
		}
		if i == 0 {
			sampleShape = sample.Shape
			data = make([]float32, 0, len(indices)*sample.NumElems)
		} else if !sameShape(sample.Shape, sampleShape) {
			return nil, fmt.Errorf("sample %d has shape %v, expected %v", idx, sample.Shape, sampleShape)
		}
		data = append(data, sample.Data...)
	}

	lf, err := tensor.NewTensor(append([]int{len(indices)}, sampleShape...), data)
	if err != nil {
		return nil, err
	}
	return &Batch{LF: lf, Indices: indices}, nil
}

// BatchResult carries either a batch or the error that ended the epoch.
type BatchResult struct {
	Batch *Batch
	Err   error
}

// Iterator resets the loader and streams one epoch of batches from a single
// producer goroutine, so batch order and crops are reproducible for a fixed
// seed. The channel is closed at the end of the epoch, after an error, or
// when ctx is cancelled.
func (dl *DataLoader) Iterator(ctx context.Context) <-chan BatchResult {
	batchChan := make(chan BatchResult, 1)

	go func() {
		defer close(batchChan)

		dl.Reset()
		for dl.HasNext() {
			if ctx.Err() != nil {
				return
			}
			batch, err := dl.Next()
			if batch == nil && err == nil {
				return
			}
			select {
			case batchChan <- BatchResult{Batch: batch, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return batchChan
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
