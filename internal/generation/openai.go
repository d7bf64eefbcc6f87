package generation

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAIGenerator calls any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator returns a generator for cfg.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai generator: model is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

// Name returns "openai:<model>".
func (g *OpenAIGenerator) Name() string { return "openai:" + g.model }

// Generate sends the prompt as system, history, and user messages.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt Prompt, params Params) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  messages(prompt),
		MaxTokens: params.MaxTokens,
	}
	if params.Sampling {
		req.Temperature = params.Temperature
		req.TopP = params.TopP
	} else {
		// A zero temperature is dropped from the request body, leaving the server default.
		req.Temperature = math.SmallestNonzeroFloat32
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedOutput)
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: empty content (finish reason %q)", ErrMalformedOutput, resp.Choices[0].FinishReason)
	}
	return answer, nil
}

func messages(p Prompt) []openai.ChatCompletionMessage {
	system := p.System
	if len(p.Context) > 0 {
		system += "\n\nContext:\n" + p.ContextBlock()
	}
	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}
	for _, t := range p.History {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Answer},
		)
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.Question})
}
