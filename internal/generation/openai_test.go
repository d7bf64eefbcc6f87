package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   int      `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeChatServer answers /chat/completions with content and records the last request.
func fakeChatServer(t *testing.T, status int, content string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "overloaded", "type": "server_error"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var req chatRequest
	srv := fakeChatServer(t, http.StatusOK, "  Paris.  ", &req)
	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL + "/", Model: "test-model", APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	history := []models.Turn{{Question: "hi", Answer: "hello"}}
	p := BuildPrompt("Capital of France?", geography, history, 4, 0)
	got, err := g.Generate(context.Background(), p, Params{Temperature: 0.5, TopP: 0.9, MaxTokens: 64, Sampling: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Paris." {
		t.Errorf("answer = %q", got)
	}
	if req.Model != "test-model" || req.MaxTokens != 64 {
		t.Errorf("request = %+v", req)
	}
	if req.Temperature == nil || *req.Temperature != 0.5 || req.TopP == nil || *req.TopP != 0.9 {
		t.Errorf("sampling params not sent: %+v", req)
	}
	roles := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	want := []string{"system", "user", "assistant", "user"}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
	if req.Messages[3].Content != "Capital of France?" {
		t.Errorf("last message = %q", req.Messages[3].Content)
	}
}

func TestOpenAIGenerator_SamplingOff(t *testing.T) {
	var req chatRequest
	srv := fakeChatServer(t, http.StatusOK, "ok", &req)
	g, _ := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
	if _, err := g.Generate(context.Background(), BuildPrompt("q", geography, nil, 0, 0), Params{Temperature: 0.8, TopP: 0.5}); err != nil {
		t.Fatal(err)
	}
	if req.Temperature == nil || *req.Temperature <= 0 || *req.Temperature > 1e-30 {
		t.Errorf("temperature = %v, want near-zero", req.Temperature)
	}
	if req.TopP != nil {
		t.Errorf("top_p sent with sampling off: %v", *req.TopP)
	}
}

func TestOpenAIGenerator_Errors(t *testing.T) {
	t.Run("server error is a backend failure", func(t *testing.T) {
		srv := fakeChatServer(t, http.StatusServiceUnavailable, "", nil)
		g, _ := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
		s := NewSynthesizer(g, genConfig())
		_, err := s.Synthesize(context.Background(), "q", geography, nil)
		if !errors.Is(err, ErrBackend) {
			t.Errorf("err = %v, want ErrBackend", err)
		}
	})
	t.Run("empty content is malformed", func(t *testing.T) {
		srv := fakeChatServer(t, http.StatusOK, "   ", nil)
		g, _ := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
		s := NewSynthesizer(g, genConfig())
		_, err := s.Synthesize(context.Background(), "q", geography, nil)
		if !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("err = %v, want ErrMalformedOutput", err)
		}
	})
	t.Run("slow server times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)
		g, _ := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
		cfg := genConfig()
		cfg.Timeout = 50 * time.Millisecond
		_, err := NewSynthesizer(g, cfg).Synthesize(context.Background(), "q", geography, nil)
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("err = %v, want ErrTimeout", err)
		}
	})
	t.Run("model required", func(t *testing.T) {
		if _, err := NewOpenAIGenerator(OpenAIConfig{}); err == nil {
			t.Error("expected error")
		}
	})
}
