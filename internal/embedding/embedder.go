// Package embedding maps text to fixed-dimensionality, L2-normalized vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyText is returned when asked to embed blank text.
	ErrEmptyText = errors.New("empty text")
	// ErrUnavailable wraps failures to reach or run the embedding backend.
	ErrUnavailable = errors.New("embedding backend unavailable")
	// ErrMalformedResponse is returned when the backend answers with the wrong shape.
	ErrMalformedResponse = errors.New("malformed embedding response")
)

// Embedder produces vector embeddings for text. Identical text yields identical
// vectors within one process.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch preserves order and returns exactly len(texts) vectors.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelID() string
	Close() error
}

// EmbeddingError reports an embedding failure for a model.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding with %s: %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// checkTexts returns an *EmbeddingError when any text is blank.
func checkTexts(model string, texts ...string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			if len(texts) == 1 {
				return &EmbeddingError{Model: model, Err: ErrEmptyText}
			}
			return &EmbeddingError{Model: model, Err: fmt.Errorf("text %d: %w", i, ErrEmptyText)}
		}
	}
	return nil
}
