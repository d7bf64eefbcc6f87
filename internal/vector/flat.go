package vector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/kotae/internal/models"
)

// FlatIndex is an exact brute-force index. Suitable for documentation-sized corpora.
type FlatIndex struct {
	dimensions int
	snap       atomic.Pointer[snapshot]
	buildMu    sync.Mutex
}

// NewFlatIndex creates a flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Build copies entries into an immutable snapshot.
func (f *FlatIndex) Build(entries []models.IndexEntry) error {
	f.buildMu.Lock()
	defer f.buildMu.Unlock()
	if f.snap.Load() != nil {
		return ErrAlreadyBuilt
	}
	s, err := newSnapshot(entries, f.dimensions)
	if err != nil {
		return err
	}
	f.snap.Store(s)
	return nil
}

// Search scores every entry against query.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := checkQuery(query, f.dimensions); err != nil {
		return nil, err
	}
	s := f.snap.Load()
	if k <= 0 || s == nil || len(s.chunks) == 0 {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qm := magnitude(query)
	hits := make([]Hit, len(s.chunks))
	for i := range s.chunks {
		hits[i] = Hit{Chunk: s.chunks[i], Score: cosine(query, s.vectors[i], qm, s.mags[i])}
	}
	sortHits(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// Size returns the number of indexed entries.
func (f *FlatIndex) Size() int {
	if s := f.snap.Load(); s != nil {
		return len(s.chunks)
	}
	return 0
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int { return f.dimensions }

// Type returns "flat".
func (f *FlatIndex) Type() string { return string(IndexTypeFlat) }
