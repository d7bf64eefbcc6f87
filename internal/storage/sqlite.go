package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/kotae/internal/models"
)

// Supported database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the transcript database at dbPath with the
// given driver ("sqlite3" or "sqlite"; empty means "sqlite3").
// Parent directories are created if they do not exist.
func NewSQLiteStore(driver, dbPath string) (*SQLiteStore, error) {
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPure:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		chunk_ids TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, id);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordTurn appends a turn. A zero turn.At is stamped with the current time.
func (s *SQLiteStore) RecordTurn(ctx context.Context, sessionID string, turn models.Turn, chunks []models.Chunk) error {
	ids := make([]int, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk ids: %w", err)
	}
	at := turn.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (session_id, question, answer, chunk_ids, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, turn.Question, turn.Answer, string(idsJSON), at.UnixNano(),
	)
	return err
}

// ListBySession returns the session's transcripts oldest first. limit <= 0 returns all.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Transcript, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, answer, chunk_ids, created_at
		 FROM transcripts WHERE session_id = ? ORDER BY id LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transcript{}
	for rows.Next() {
		var (
			t       models.Transcript
			idsJSON string
			nanos   int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Question, &t.Answer, &idsJSON, &nanos); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(idsJSON), &t.ChunkIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk ids: %w", err)
		}
		t.CreatedAt = time.Unix(0, nanos)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTurns returns the total number of recorded turns.
func (s *SQLiteStore) CountTurns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&count)
	return count, err
}

// CountSessions returns the number of distinct sessions with at least one turn.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM transcripts`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
