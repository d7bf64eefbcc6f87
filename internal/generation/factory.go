package generation

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Backend names accepted in generation.provider.
const (
	ProviderExtractive = "extractive"
	ProviderOpenAI     = "openai"
)

// New returns the generator selected by cfg.Provider.
func New(cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case ProviderExtractive, "":
		return NewExtractiveGenerator(0), nil
	case ProviderOpenAI:
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
