// Package vector stores chunk vectors and answers cosine nearest-neighbor queries.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

var (
	// ErrAlreadyBuilt is returned by a second Build call.
	ErrAlreadyBuilt = errors.New("vector index already built")
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Hit is a chunk with its cosine similarity to the query.
type Hit = models.ScoredChunk

// Index is an immutable-after-build vector index. Search is safe for concurrent use.
type Index interface {
	// Build loads entries once. A second call fails with ErrAlreadyBuilt.
	Build(entries []models.IndexEntry) error
	// Search returns up to k hits ordered by descending similarity, ties by
	// ascending chunk ID. k <= 0 or an empty index yields no hits and no error.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Size() int
	Dimensions() int
	Type() string
}
