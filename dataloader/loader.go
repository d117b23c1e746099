package dataloader

import (
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/visionkit/go-hybrid/record"
)

// Dataset is the random-access contract the loader iterates over.
type Dataset interface {
	Len() int
	Get(i int) (*record.Record, error)
}

// Builder collates fetched records into a batch.
type Builder func(records []*record.Record) (*Batch, []*record.Record, error)

// LoaderConfig holds configuration for a Loader.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	// Builder defaults to BuildSingleAugBatch.
	Builder Builder
	// Rand drives shuffling; nil uses the global source.
	Rand *rand.Rand
	// KeepImages skips freeing record pixel data after collation.
	KeepImages bool
}

// Loader batches a Dataset: shuffling per epoch, sequential Next calls,
// record pixel data freed once collated so memory stays bounded.
type Loader struct {
	dataset    Dataset
	batchSize  int
	shuffle    bool
	builder    Builder
	rng        *rand.Rand
	keepImages bool

	mu       sync.Mutex
	indices  []int
	position int
}

// NewLoader creates a loader over the dataset.
func NewLoader(dataset Dataset, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Builder == nil {
		cfg.Builder = BuildSingleAugBatch
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	l := &Loader{
		dataset:    dataset,
		batchSize:  cfg.BatchSize,
		shuffle:    cfg.Shuffle,
		builder:    cfg.Builder,
		rng:        cfg.Rand,
		keepImages: cfg.KeepImages,
		indices:    indices,
	}
	if cfg.Shuffle {
		l.shuffleIndices()
	}
	return l, nil
}

// Len returns the number of batches per epoch.
func (l *Loader) Len() int {
	return (len(l.indices) + l.batchSize - 1) / l.batchSize
}

// Reset rewinds to the start of a new epoch, reshuffling if configured.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.position = 0
	if l.shuffle {
		l.shuffleIndices()
	}
}

// shuffleIndices permutes the index order. Caller holds the lock except
// during construction.
func (l *Loader) shuffleIndices() {
	swap := func(i, j int) { l.indices[i], l.indices[j] = l.indices[j], l.indices[i] }
	if l.rng != nil {
		l.rng.Shuffle(len(l.indices), swap)
	} else {
		rand.Shuffle(len(l.indices), swap)
	}
}

// HasNext reports whether the current epoch has more batches.
func (l *Loader) HasNext() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position < len(l.indices)
}

// Next fetches and collates the next batch. Returns (nil, nil, nil) at
// the end of the epoch.
func (l *Loader) Next() (*Batch, []*record.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.position >= len(l.indices) {
		return nil, nil, nil
	}

	end := l.position + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	batchIndices := l.indices[l.position:end]
	l.position = end

	records := make([]*record.Record, 0, len(batchIndices))
	for _, idx := range batchIndices {
		rec, err := l.dataset.Get(idx)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to fetch sample %d", idx)
		}
		records = append(records, rec)
	}

	batch, records, err := l.builder(records)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to collate batch")
	}

	// Batch tensors hold copies; the per-record pixel data is no longer
	// needed once collated.
	if !l.keepImages {
		for _, rec := range records {
			rec.Unload()
		}
	}
	return batch, records, nil
}
