// Package retrieval turns a question into the top-k most relevant chunks.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Retrieval modes.
const (
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

// DefaultK is the number of chunks returned when k is not positive.
const DefaultK = 4

// HybridConfig weights keyword and semantic evidence.
type HybridConfig struct {
	Candidates     int
	KeywordWeight  float64
	SemanticWeight float64
}

// Retriever embeds questions and searches the vector index, optionally fusing
// BM25 keyword hits.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.Index
	k        int

	keywords *keyword.Index
	chunks   map[int]models.Chunk
	hybrid   HybridConfig

	logger *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for debug timing output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithHybrid enables keyword fusion. chunks must hold every chunk in kw so that
// keyword-only hits can be resolved.
func WithHybrid(kw *keyword.Index, chunks []models.Chunk, cfg HybridConfig) Option {
	return func(r *Retriever) {
		if cfg.Candidates <= 0 {
			cfg.Candidates = 20
		}
		if cfg.KeywordWeight == 0 && cfg.SemanticWeight == 0 {
			cfg.KeywordWeight, cfg.SemanticWeight = 0.3, 0.7
		}
		r.keywords = kw
		r.hybrid = cfg
		r.chunks = make(map[int]models.Chunk, len(chunks))
		for _, ch := range chunks {
			r.chunks[ch.ID] = ch
		}
	}
}

// New returns a Retriever returning k chunks per question (DefaultK when k <= 0).
func New(embedder embedding.Embedder, index vector.Index, k int, opts ...Option) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	r := &Retriever{embedder: embedder, index: index, k: k, logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// K returns the configured number of chunks per question.
func (r *Retriever) K() int { return r.k }

// Mode reports "hybrid" when keyword fusion is enabled, else "semantic".
func (r *Retriever) Mode() string {
	if r.keywords != nil {
		return ModeHybrid
	}
	return ModeSemantic
}

// Retrieve returns at most k chunks, most relevant first.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	hits, err := r.RetrieveScored(ctx, question)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	return chunks, nil
}

// RetrieveScored is Retrieve with scores: cosine similarity in semantic mode,
// the fused score in hybrid mode.
func (r *Retriever) RetrieveScored(ctx context.Context, question string) ([]models.ScoredChunk, error) {
	start := time.Now()
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if r.keywords == nil {
		hits, err := r.index.Search(ctx, vec, r.k)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		r.logger.Debug("retrieved chunks",
			zap.Int("hits", len(hits)),
			zap.Duration("elapsed", time.Since(start)))
		return hits, nil
	}
	return r.retrieveHybrid(ctx, question, vec, start)
}

func (r *Retriever) retrieveHybrid(ctx context.Context, question string, vec []float32, start time.Time) ([]models.ScoredChunk, error) {
	candidates := r.hybrid.Candidates
	if candidates < r.k {
		candidates = r.k
	}
	semantic, err := r.index.Search(ctx, vec, candidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	kwHits, err := r.keywords.Search(ctx, question, candidates)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	found := make(map[int]models.Chunk, len(semantic))
	for _, h := range semantic {
		found[h.Chunk.ID] = h.Chunk
	}

	fused := Fuse(NormalizeKeywordScores(kwHits), NormalizeSemanticScores(semantic), r.hybrid.KeywordWeight, r.hybrid.SemanticWeight)
	out := make([]models.ScoredChunk, 0, r.k)
	for _, f := range fused {
		if len(out) == r.k {
			break
		}
		ch, ok := found[f.ChunkID]
		if !ok {
			if ch, ok = r.chunks[f.ChunkID]; !ok {
				continue
			}
		}
		out = append(out, models.ScoredChunk{Chunk: ch, Score: f.Score})
	}
	r.logger.Debug("retrieved chunks (hybrid)",
		zap.Int("semantic", len(semantic)),
		zap.Int("keyword", len(kwHits)),
		zap.Int("hits", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
