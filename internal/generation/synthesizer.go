package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// Synthesizer bounds the prompt and the backend call for one answer.
type Synthesizer struct {
	gen            Generator
	params         Params
	timeout        time.Duration
	historyTurns   int
	maxPromptChars int
	logger         *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets a logger for backend call timings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// NewSynthesizer wraps gen with the decoding parameters and bounds in cfg.
func NewSynthesizer(gen Generator, cfg config.GenerationConfig, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		gen: gen,
		params: Params{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
			Sampling:    cfg.SamplingOrDefault(),
		},
		timeout:        cfg.Timeout,
		historyTurns:   cfg.HistoryTurns,
		maxPromptChars: cfg.MaxPromptChars,
		logger:         zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Backend returns the generator's name.
func (s *Synthesizer) Backend() string { return s.gen.Name() }

// Synthesize answers question from chunks and history. With no chunks it returns
// NoContextAnswer without calling the backend. Failures are *GenerationError.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []models.Chunk, history []models.Turn) (string, error) {
	if len(chunks) == 0 {
		return NoContextAnswer, nil
	}
	prompt := BuildPrompt(question, chunks, history, s.historyTurns, s.maxPromptChars)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	answer, err := s.gen.Generate(callCtx, prompt, s.params)
	s.logger.Debug("generation finished",
		zap.String("backend", s.gen.Name()),
		zap.Int("context_chunks", len(prompt.Context)),
		zap.Int("history_turns", len(prompt.History)),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))
	if err != nil {
		return "", &GenerationError{Backend: s.gen.Name(), Err: classify(callCtx, err)}
	}
	if answer == "" {
		return "", &GenerationError{Backend: s.gen.Name(), Err: ErrMalformedOutput}
	}
	return answer, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrMalformedOutput):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
}
