// Package pipeline answers one question: validate, retrieve, synthesize, remember.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/memory"
	"github.com/hyperjump/kotae/internal/models"
)

// Stage is a step of one pipeline run.
type Stage string

// A run moves received -> retrieving -> synthesizing -> completed, or stops at failed.
const (
	StageReceived     Stage = "received"
	StageRetrieving   Stage = "retrieving"
	StageSynthesizing Stage = "synthesizing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// PipelineError reports the stage at which a run failed.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsClientError reports whether err was caused by bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, models.ErrEmptyQuestion) || errors.Is(err, models.ErrQuestionTooLong)
}

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.Chunk, error)
}

// Synthesizer writes an answer from retrieved chunks and prior turns.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, chunks []models.Chunk, history []models.Turn) (string, error)
}

// Recorder persists completed turns.
type Recorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn models.Turn, chunks []models.Chunk) error
}

// Pipeline composes retrieval, synthesis, and conversation memory.
type Pipeline struct {
	retriever        Retriever
	synth            Synthesizer
	memory           *memory.Store
	recorder         Recorder
	maxQuestionChars int
	logger           *zap.Logger
	now              func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for per-run output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRecorder records every completed turn. Recorder failures are logged, not returned.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithMaxQuestionChars bounds question length (models.DefaultMaxQuestionChars when unset).
func WithMaxQuestionChars(n int) Option {
	return func(p *Pipeline) { p.maxQuestionChars = n }
}

// New returns a pipeline over the given components.
func New(r Retriever, s Synthesizer, mem *memory.Store, opts ...Option) *Pipeline {
	p := &Pipeline{retriever: r, synth: s, memory: mem, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Answer runs the pipeline for req. Memory is updated only when every stage
// succeeds. Errors are *PipelineError naming the first failing stage.
func (p *Pipeline) Answer(ctx context.Context, req models.AskRequest) (*models.QueryResult, error) {
	log := p.logger.With(zap.String("query_id", uuid.NewString()))
	start := p.now()

	if err := req.Validate(p.maxQuestionChars); err != nil {
		return nil, p.fail(log, StageReceived, err)
	}
	log = log.With(zap.String("session_id", req.SessionID))
	log.Debug("query received", zap.Int("question_chars", len(req.Question)))

	chunks, err := p.retriever.Retrieve(ctx, req.Question)
	if err != nil {
		return nil, p.fail(log, StageRetrieving, err)
	}
	log.Debug("chunks retrieved", zap.Int("chunks", len(chunks)))

	history := p.memory.History(req.SessionID)
	answer, err := p.synth.Synthesize(ctx, req.Question, chunks, history)
	if err != nil {
		return nil, p.fail(log, StageSynthesizing, err)
	}

	turn := models.Turn{Question: req.Question, Answer: answer, At: p.now()}
	p.memory.Append(req.SessionID, turn)
	if p.recorder != nil {
		if err := p.recorder.RecordTurn(ctx, req.SessionID, turn, chunks); err != nil {
			log.Warn("failed to record transcript", zap.Error(err))
		}
	}
	log.Info("query completed",
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", p.now().Sub(start)))

	return &models.QueryResult{Answer: answer, RetrievedChunks: chunks, SessionID: req.SessionID}, nil
}

func (p *Pipeline) fail(log *zap.Logger, stage Stage, err error) error {
	if IsClientError(err) {
		log.Debug("query rejected", zap.String("stage", string(stage)), zap.Error(err))
	} else {
		log.Error("query failed", zap.String("stage", string(stage)), zap.Error(err))
	}
	return &PipelineError{Stage: stage, Err: err}
}

// History returns a snapshot of the session's turns.
func (p *Pipeline) History(sessionID string) []models.Turn {
	return p.memory.History(sessionID)
}

// Reset forgets a session and reports whether it existed.
func (p *Pipeline) Reset(sessionID string) bool {
	return p.memory.Reset(sessionID)
}

// Sessions returns the number of live sessions.
func (p *Pipeline) Sessions() int { return p.memory.Len() }
