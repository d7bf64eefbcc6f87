// Package indexer builds the read-only knowledge base: chunk embeddings in the
// vector index and, for hybrid retrieval, a keyword index over the same chunks.
package indexer

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

// ChunkSource loads the chunks of a corpus.
type ChunkSource interface {
	Load(ctx context.Context, path string) ([]models.Chunk, error)
}

// KnowledgeBase is the result of one build. It is never modified afterwards.
type KnowledgeBase struct {
	Chunks   []models.Chunk
	Vectors  vector.Index
	Keywords *keyword.Index // nil unless built with keywords
	Took     time.Duration
}

// Close releases the keyword index, if any.
func (kb *KnowledgeBase) Close() error {
	if kb.Keywords != nil {
		return kb.Keywords.Close()
	}
	return nil
}

// Indexer embeds chunks and fills the indices.
type Indexer struct {
	embedder  embedding.Embedder
	indexType string
	keywords  bool
	kwOpts    keyword.Options
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex also builds a BM25 keyword index, for hybrid retrieval.
func WithKeywordIndex(opts keyword.Options) IndexerOption {
	return func(idx *Indexer) {
		idx.keywords = true
		idx.kwOpts = opts
	}
}

// NewIndexer creates an indexer that embeds with embedder into a vector index of indexType.
func NewIndexer(embedder embedding.Embedder, indexType string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{embedder: embedder, indexType: indexType, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build embeds every chunk and builds the indices. An empty chunk list builds
// empty indices.
func (idx *Indexer) Build(ctx context.Context, chunks []models.Chunk) (*KnowledgeBase, error) {
	start := time.Now()
	vectors, err := vector.NewIndex(idx.indexType, idx.embedder.Dimensions())
	if err != nil {
		return nil, err
	}

	entries := make([]models.IndexEntry, len(chunks))
	if len(chunks) > 0 {
		embeddings, err := idx.embedder.EmbedBatch(ctx, models.Texts(chunks))
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, fmt.Errorf("failed to generate embeddings: got %d for %d chunks", len(embeddings), len(chunks))
		}
		for i := range chunks {
			entries[i] = models.IndexEntry{Chunk: chunks[i], Vector: embeddings[i]}
		}
	}
	if err := vectors.Build(entries); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}

	kb := &KnowledgeBase{Chunks: chunks, Vectors: vectors}
	if idx.keywords {
		kw, err := keyword.New(idx.kwOpts)
		if err != nil {
			return nil, err
		}
		if err := kw.Build(ctx, chunks); err != nil {
			_ = kw.Close()
			return nil, fmt.Errorf("failed to index keywords: %w", err)
		}
		kb.Keywords = kw
	}
	kb.Took = time.Since(start)
	idx.logger.Info("knowledge base built",
		zap.Int("chunks", len(chunks)),
		zap.String("index_type", vectors.Type()),
		zap.String("model", idx.embedder.ModelID()),
		zap.Bool("keywords", kb.Keywords != nil),
		zap.Duration("took", kb.Took))
	return kb, nil
}

// BuildFrom loads the corpus at path from src and builds it.
func (idx *Indexer) BuildFrom(ctx context.Context, src ChunkSource, path string) (*KnowledgeBase, error) {
	chunks, err := src.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return idx.Build(ctx, chunks)
}
