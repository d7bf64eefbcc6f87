package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/loader"
	"github.com/hyperjump/kotae/internal/memory"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config      *config.Config
	Embedder    embedding.Embedder
	Knowledge   *indexer.KnowledgeBase
	Retriever   *retrieval.Retriever
	Synthesizer *generation.Synthesizer
	Pipeline    *pipeline.Pipeline
	Transcripts storage.Store // nil when transcripts are off
}

// Close releases every component that holds resources.
func (c *Components) Close() {
	if c.Transcripts != nil {
		_ = c.Transcripts.Close()
	}
	if c.Knowledge != nil {
		_ = c.Knowledge.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// Status reports the knowledge base and session state.
func (c *Components) Status(ctx context.Context) (*models.Status, error) {
	cfg := c.Config
	st := &models.Status{
		Chunks:          len(c.Knowledge.Chunks),
		VectorIndexSize: c.Knowledge.Vectors.Size(),
		Sessions:        c.Pipeline.Sessions(),
		Config: &models.StatusConfig{
			CorpusPath:        cfg.Corpus.Path,
			Strategy:          cfg.Corpus.Strategy,
			ChunkSize:         cfg.Corpus.ChunkSize,
			ChunkOverlap:      cfg.Corpus.ChunkOverlap,
			IndexType:         c.Knowledge.Vectors.Type(),
			RetrievalMode:     c.Retriever.Mode(),
			K:                 c.Retriever.K(),
			EmbeddingModel:    c.Embedder.ModelID(),
			EmbeddingDims:     c.Embedder.Dimensions(),
			GenerationBackend: c.Synthesizer.Backend(),
			TranscriptPath:    cfg.Storage.TranscriptPath,
		},
	}
	if c.Transcripts != nil {
		n, err := c.Transcripts.CountTurns(ctx)
		if err != nil {
			return nil, fmt.Errorf("count transcript turns: %w", err)
		}
		st.TranscriptTurns = &n
		sessions, err := c.Transcripts.CountSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("count transcript sessions: %w", err)
		}
		st.TranscriptSessions = &sessions
	}
	paths := append([]string{cfg.Corpus.Path}, storage.DatabaseFiles(cfg.Storage.TranscriptPath)...)
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = &diskBytes
	}
	return st, nil
}

func newLoader(cfg *config.Config, logger *zap.Logger, debug bool) *loader.Loader {
	var opts []loader.Option
	if debug {
		opts = append(opts, loader.WithLogger(logger))
	}
	return loader.New(loader.Options{
		Strategy:     cfg.Corpus.Strategy,
		ChunkSize:    cfg.Corpus.ChunkSize,
		ChunkOverlap: cfg.Corpus.ChunkOverlap,
		Extensions:   cfg.Corpus.Extensions,
	}, extract.NewExtractor(), opts...)
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	e, err := embedding.New(cfg.Embedding)
	if err == nil {
		return e, nil
	}
	// A missing local model should not keep the server down.
	if cfg.Embedding.Provider != embedding.ProviderONNX {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	logger.Warn("onnx embedder unavailable, falling back to hash embedder",
		zap.String("model_path", cfg.Embedding.ModelPath),
		zap.Error(err))
	fallback := cfg.Embedding
	fallback.Provider = embedding.ProviderHash
	return embedding.New(fallback)
}

// initializeComponents loads the corpus, builds the knowledge base, and wires
// the query pipeline. Any failure here is fatal for the caller.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Components{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder

	indexType := cfg.Retrieval.IndexType
	if _, err := vector.NewIndex(indexType, embedder.Dimensions()); err != nil {
		logger.Warn("failed to create vector index, falling back to flat",
			zap.String("requested_type", indexType),
			zap.Error(err))
		indexType = string(vector.IndexTypeFlat)
	}

	var idxOpts []indexer.IndexerOption
	idxOpts = append(idxOpts, indexer.WithLogger(logger))
	hybrid := false
	switch cfg.Retrieval.Mode {
	case retrieval.ModeSemantic, "":
	case retrieval.ModeHybrid:
		hybrid = true
		idxOpts = append(idxOpts, indexer.WithKeywordIndex(keyword.Options{
			HeadingBoost: cfg.Retrieval.HeadingBoost,
			Fuzziness:    cfg.Retrieval.KeywordFuzziness,
		}))
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q (supported: semantic, hybrid)", cfg.Retrieval.Mode)
	}
	kb, err := indexer.NewIndexer(embedder, indexType, idxOpts...).
		BuildFrom(ctx, newLoader(cfg, logger, debug), cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base: %w", err)
	}
	c.Knowledge = kb

	retOpts := []retrieval.Option{retrieval.WithLogger(logger)}
	if hybrid {
		retOpts = append(retOpts, retrieval.WithHybrid(kb.Keywords, kb.Chunks, retrieval.HybridConfig{
			Candidates:     cfg.Retrieval.Candidates,
			KeywordWeight:  cfg.Retrieval.KeywordWeight,
			SemanticWeight: cfg.Retrieval.SemanticWeight,
		}))
	}
	c.Retriever = retrieval.New(embedder, kb.Vectors, cfg.Retrieval.K, retOpts...)

	gen, err := generation.New(cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	c.Synthesizer = generation.NewSynthesizer(gen, cfg.Generation, generation.WithLogger(logger))

	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMaxQuestionChars(cfg.Server.MaxQuestionChars),
	}
	if cfg.Storage.TranscriptPath != "" {
		store, err := storage.NewSQLiteStore(cfg.Storage.Driver, cfg.Storage.TranscriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transcript store: %w", err)
		}
		c.Transcripts = store
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(store))
	}
	mem := memory.New(cfg.Memory.MaxTurns, cfg.Memory.MaxSessions, memory.WithLogger(logger))
	c.Pipeline = pipeline.New(c.Retriever, c.Synthesizer, mem, pipeOpts...)

	logger.Info("components initialized",
		zap.String("embedding", embedder.ModelID()),
		zap.String("generation", gen.Name()),
		zap.String("retrieval_mode", c.Retriever.Mode()),
		zap.Bool("transcripts", c.Transcripts != nil))
	ok = true
	return c, nil
}
