package config

import "time"

// ApplyDefaults sets default values for zero fields whose zero value is not a
// usable setting. Fields where zero means something (no overlap, greedy
// decoding, no cache, no timeout, no history) are seeded by Default instead,
// so an explicit zero in a config file survives.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Server.MaxQuestionChars == 0 {
		cfg.Server.MaxQuestionChars = 2000
	}

	if cfg.Corpus.Path == "" {
		cfg.Corpus.Path = "./README.md"
	}
	if cfg.Corpus.Strategy == "" {
		cfg.Corpus.Strategy = "heading"
	}
	if cfg.Corpus.ChunkSize == 0 {
		cfg.Corpus.ChunkSize = 200
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".md", ".txt", ".rst", ".pdf", ".docx", ".xlsx"}
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "onnx":
		if cfg.Embedding.ModelPath == "" {
			cfg.Embedding.ModelPath = "/usr/local/var/kotae/models/all-MiniLM-L6-v2.onnx"
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "all-MiniLM-L6-v2"
		}
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "extractive"
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 1.0
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 200
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}
	if cfg.Generation.MaxPromptChars == 0 {
		cfg.Generation.MaxPromptChars = 6000
	}
	if cfg.Generation.Provider == "openai" {
		if cfg.Generation.Model == "" {
			cfg.Generation.Model = "gpt-4o-mini"
		}
		if cfg.Generation.BaseURL == "" {
			cfg.Generation.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Generation.APIKeyEnv == "" {
			cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
		}
	}

	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 4
	}
	if cfg.Retrieval.IndexType == "" {
		cfg.Retrieval.IndexType = "flat"
	}
	if cfg.Retrieval.Mode == "" {
		cfg.Retrieval.Mode = "semantic"
	}
	if cfg.Retrieval.Candidates == 0 {
		cfg.Retrieval.Candidates = 20
	}
	if cfg.Retrieval.HeadingBoost == 0 {
		cfg.Retrieval.HeadingBoost = 2
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}

	if cfg.Memory.MaxTurns == 0 {
		cfg.Memory.MaxTurns = 20
	}
	if cfg.Memory.MaxSessions == 0 {
		cfg.Memory.MaxSessions = 1024
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{
		Server:     ServerConfig{RequestTimeout: 60 * time.Second},
		Corpus:     CorpusConfig{ChunkOverlap: 20},
		Embedding:  EmbeddingConfig{CacheSize: 10000},
		Generation: GenerationConfig{Temperature: 0.8, HistoryTurns: 4},
	}
	ApplyDefaults(cfg)
	return cfg
}
