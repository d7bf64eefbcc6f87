// Package generation turns a question and retrieved context into an answer.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// NoContextAnswer is returned, without calling any backend, when retrieval finds nothing.
const NoContextAnswer = "I could not find anything in the documentation that answers this question."

var (
	// ErrTimeout is the cause when the backend does not answer within the configured timeout.
	ErrTimeout = errors.New("generation timed out")
	// ErrBackend is the cause when the backend cannot be reached or rejects the request.
	ErrBackend = errors.New("generation backend failed")
	// ErrMalformedOutput is the cause when the backend answers with no usable text.
	ErrMalformedOutput = errors.New("malformed generation output")
)

// GenerationError reports a failed generation on a backend.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Params are the decoding parameters passed to a backend.
type Params struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
	Sampling    bool
}

// Generator produces answer text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt, params Params) (string, error)
	Name() string
}
