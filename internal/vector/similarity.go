package vector

import (
	"fmt"
	"sort"

	"github.com/viant/vec/search"

	"github.com/hyperjump/kotae/internal/models"
)

// magnitude returns the L2 norm of v.
func magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// cosine returns the cosine similarity of a and b; 0 when either magnitude is zero.
// Both indexes score through this function so equal inputs give bit-identical scores.
func cosine(a, b []float32, ma, mb float32) float64 {
	if ma == 0 || mb == 0 {
		return 0
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b))
}

// sortHits orders hits by descending score, then ascending chunk ID.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}

// snapshot is the published, read-only content of an index.
type snapshot struct {
	chunks  []models.Chunk
	vectors [][]float32
	mags    []float32
}

// newSnapshot copies entries and validates their dimension.
func newSnapshot(entries []models.IndexEntry, dims int) (*snapshot, error) {
	s := &snapshot{
		chunks:  make([]models.Chunk, len(entries)),
		vectors: make([][]float32, len(entries)),
		mags:    make([]float32, len(entries)),
	}
	for i, e := range entries {
		if len(e.Vector) != dims {
			return nil, fmt.Errorf("%w: entry %d (chunk %d) has %d, want %d", ErrDimensionMismatch, i, e.Chunk.ID, len(e.Vector), dims)
		}
		s.chunks[i] = e.Chunk
		s.vectors[i] = append([]float32(nil), e.Vector...)
		s.mags[i] = magnitude(s.vectors[i])
	}
	return s, nil
}

func checkQuery(query []float32, dims int) error {
	if len(query) != dims {
		return fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(query), dims)
	}
	return nil
}
