package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kotae/pkg/utils"
)

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	// Concurrency bounds in-flight batch requests in EmbedBatch.
	Concurrency int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// OpenAIEmbedder calls any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIEmbedder returns an embedder for cfg. Dimensions must be set, since
// every vector in one index must share it.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai embedder: model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("openai embedder: dimensions must be positive")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Embed returns the embedding of one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkTexts(e.ModelID(), text); err != nil {
		return nil, err
	}
	vecs, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into batches and sends them with bounded concurrency.
// The first failing batch cancels the rest.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(e.ModelID(), texts...); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		start := start
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := e.request(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, input []string) ([][]float32, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	req := openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(e.cfg.Model),
	}
	// Only the text-embedding-3 family accepts a requested width.
	if strings.HasPrefix(e.cfg.Model, "text-embedding-3") {
		req.Dimensions = e.cfg.Dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, &EmbeddingError{Model: e.ModelID(), Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	if len(resp.Data) != len(input) {
		return nil, &EmbeddingError{Model: e.ModelID(), Err: fmt.Errorf("%w: got %d vectors for %d inputs", ErrMalformedResponse, len(resp.Data), len(input))}
	}
	out := make([][]float32, len(input))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(input) || out[idx] != nil {
			idx = i
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, &EmbeddingError{Model: e.ModelID(), Err: fmt.Errorf("%w: dimension %d, want %d", ErrMalformedResponse, len(d.Embedding), e.cfg.Dimensions)}
		}
		v := append([]float32(nil), d.Embedding...)
		utils.NormalizeL2(v)
		out[idx] = v
	}
	for i := range out {
		if out[i] == nil {
			return nil, &EmbeddingError{Model: e.ModelID(), Err: fmt.Errorf("%w: missing vector %d", ErrMalformedResponse, i)}
		}
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// ModelID returns "openai:<model>".
func (e *OpenAIEmbedder) ModelID() string { return "openai:" + e.cfg.Model }

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error { return nil }
