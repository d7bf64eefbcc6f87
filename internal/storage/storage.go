// Package storage persists an append-only transcript of answered questions.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Store defines transcript persistence operations.
type Store interface {
	RecordTurn(ctx context.Context, sessionID string, turn models.Turn, chunks []models.Chunk) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Transcript, error)

	// Stats
	CountTurns(ctx context.Context) (int64, error)
	CountSessions(ctx context.Context) (int64, error)

	Close() error
}
