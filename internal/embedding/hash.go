package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

// HashEmbedder is a local, deterministic embedder using signed feature hashing
// over content words. Texts sharing vocabulary land close together, which is
// enough for keyword-heavy documentation without any model download.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder of the given dimensions (384 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed feature vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkTexts(e.ModelID(), text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &EmbeddingError{Model: e.ModelID(), Err: err}
	}
	return e.vector(text), nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(e.ModelID(), texts...); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, &EmbeddingError{Model: e.ModelID(), Err: err}
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	tokens := utils.ContentTokens(text)
	if len(tokens) == 0 {
		tokens = utils.Tokenize(text)
	}
	if len(tokens) == 0 {
		tokens = []string{strings.ToLower(strings.TrimSpace(text))}
	}
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	v := make([]float32, e.dimensions)
	for tok, n := range counts {
		idx, sign := e.bucket(tok)
		v[idx] += sign * float32(1+math.Log(float64(n)))
	}
	utils.NormalizeL2(v)
	return v
}

// bucket maps a token to a dimension and a sign; the sign halves collision bias.
func (e *HashEmbedder) bucket(token string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimensions)), sign
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// ModelID identifies the hashing scheme and width.
func (e *HashEmbedder) ModelID() string { return fmt.Sprintf("hash-%d", e.dimensions) }

// Close is a no-op.
func (e *HashEmbedder) Close() error { return nil }
