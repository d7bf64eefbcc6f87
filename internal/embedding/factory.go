package embedding

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Providers.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// New builds the embedder cfg selects, wrapped in a query cache when
// cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderHash, "":
		e = NewHashEmbedder(cfg.Dimensions)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case ProviderONNX:
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
