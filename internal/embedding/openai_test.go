package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeEmbeddingsServer answers /embeddings with vector [len(text), 1, 0, ...] per input,
// listing data in reverse order to exercise index mapping.
func fakeEmbeddingsServer(t *testing.T, dims int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if requests != nil {
			requests.Add(1)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, dims)
			v[0] = float32(len(req.Input[i]))
			v[1] = 1
			data = append(data, item{Object: "embedding", Embedding: v, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := fakeEmbeddingsServer(t, 4, nil)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "nomic-embed-text", Dimensions: 4})
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 4 {
		t.Fatalf("len = %d", len(v))
	}
	// [3,1,0,0] normalized
	if v[0] <= v[1] || v[1] <= 0 {
		t.Errorf("unexpected vector %v", v)
	}
	if e.ModelID() != "openai:nomic-embed-text" {
		t.Errorf("ModelID = %q", e.ModelID())
	}
}

func TestOpenAIEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingsServer(t, 3, &requests)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimensions: 3, BatchSize: 2, Concurrency: 2})
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i := 1; i < len(vecs); i++ {
		// longer text means larger first component after normalization
		if vecs[i][0] <= vecs[i-1][0] {
			t.Errorf("vector %d out of order: %v then %v", i, vecs[i-1], vecs[i])
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3 batches", got)
	}
}

func TestOpenAIEmbedder_dimensionMismatch(t *testing.T) {
	srv := fakeEmbeddingsServer(t, 5, nil)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimensions: 4})
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestOpenAIEmbedder_backendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimensions: 2})
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	var ee *EmbeddingError
	if !errors.As(err, &ee) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want EmbeddingError wrapping ErrUnavailable", err)
	}
}

func TestOpenAIEmbedder_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimensions: 2, Timeout: 50 * time.Millisecond})
	if _, err := e.Embed(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestOpenAIEmbedder_emptyTextSkipsBackend(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingsServer(t, 2, &requests)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimensions: 2})
	if _, err := e.Embed(context.Background(), " "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if requests.Load() != 0 {
		t.Error("backend should not be called for empty text")
	}
}

func TestNewOpenAIEmbedder_validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{Dimensions: 3}); err == nil {
		t.Error("expected error without model")
	}
	if _, err := NewOpenAIEmbedder(OpenAIConfig{Model: "m"}); err == nil {
		t.Error("expected error without dimensions")
	}
}
