// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	EnvFile    string           `yaml:"env_file"`
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Memory     MemoryConfig     `yaml:"memory"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxQuestionChars int           `yaml:"max_question_chars"`
}

// CorpusConfig describes the documentation to index and how to split it.
type CorpusConfig struct {
	Path         string   `yaml:"path"`
	Strategy     string   `yaml:"strategy"` // "heading" or "window"
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Extensions   []string `yaml:"extensions"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "hash", "openai", or "onnx"
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	ModelPath  string        `yaml:"model_path"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`

	// APIKey is resolved from APIKeyEnv at load time and never written back.
	APIKey string `yaml:"-"`
}

// GenerationConfig selects the generation backend and its decoding parameters.
type GenerationConfig struct {
	Provider       string        `yaml:"provider"` // "extractive" or "openai"
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Temperature    float32       `yaml:"temperature"`
	TopP           float32       `yaml:"top_p"`
	MaxTokens      int           `yaml:"max_tokens"`
	Sampling       *bool         `yaml:"sampling"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxPromptChars int           `yaml:"max_prompt_chars"`
	HistoryTurns   int           `yaml:"history_turns"`

	APIKey string `yaml:"-"`
}

// SamplingOrDefault returns whether sampling is enabled; defaults to true when unset.
func (g *GenerationConfig) SamplingOrDefault() bool {
	if g.Sampling != nil {
		return *g.Sampling
	}
	return true
}

// RetrievalConfig holds top-k lookup settings.
type RetrievalConfig struct {
	K              int     `yaml:"k"`
	IndexType      string  `yaml:"index_type"` // "flat" or "vptree"
	Mode           string  `yaml:"mode"`       // "semantic" or "hybrid"
	Candidates     int     `yaml:"candidates"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	// KeywordFuzziness is the edit distance allowed per keyword term (0 to 2); 0 matches exactly.
	KeywordFuzziness int `yaml:"keyword_fuzziness"`
	// HeadingBoost multiplies keyword matches found in a section heading.
	HeadingBoost float64 `yaml:"heading_boost"`
}

// MemoryConfig bounds conversation memory.
type MemoryConfig struct {
	MaxTurns    int `yaml:"max_turns"`
	MaxSessions int `yaml:"max_sessions"`
}

// StorageConfig configures the optional transcript log.
type StorageConfig struct {
	Driver         string `yaml:"driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
	TranscriptPath string `yaml:"transcript_path"`
}

// Load reads and parses the config file at path over Default, expands paths,
// and resolves API keys. Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Corpus.Path = expandPath(cfg.Corpus.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Storage.TranscriptPath = expandPath(cfg.Storage.TranscriptPath, configDir)
	cfg.EnvFile = expandPath(cfg.EnvFile, configDir)

	if err := cfg.ResolveSecrets(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveSecrets fills the API keys from the process environment, falling back to
// EnvFile when set. The process environment is only read, never modified.
func (c *Config) ResolveSecrets() error {
	var fileEnv map[string]string
	if c.EnvFile != "" {
		env, err := godotenv.Read(c.EnvFile)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read env file: %w", err)
		}
		fileEnv = env
	}
	lookup := func(name string) string {
		if name == "" {
			return ""
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return fileEnv[name]
	}
	c.Embedding.APIKey = lookup(c.Embedding.APIKeyEnv)
	c.Generation.APIKey = lookup(c.Generation.APIKeyEnv)
	return nil
}

// Save writes the config to path, creating the parent directory when needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
