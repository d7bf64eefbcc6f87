// Package memory keeps bounded per-session conversation history.
package memory

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// DefaultMaxSessions bounds the session count when none is configured.
const DefaultMaxSessions = 1024

// Store holds the turns of each session. Each session keeps at most maxTurns
// turns (0 keeps all); at most maxSessions sessions are kept, least recently
// used evicted first. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	maxTurns int
	sessions *lru.Cache[string, []models.Turn]
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger logs session evictions at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns an empty store.
func New(maxTurns, maxSessions int, opts ...Option) *Store {
	if maxTurns < 0 {
		maxTurns = 0
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	s := &Store{maxTurns: maxTurns, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	cache, err := lru.NewWithEvict(maxSessions, func(id string, turns []models.Turn) {
		s.logger.Debug("session evicted", zap.String("session_id", id), zap.Int("turns", len(turns)))
	})
	if err != nil {
		// Only returned for non-positive sizes.
		panic(err)
	}
	s.sessions = cache
	return s
}

// Append records a turn for sessionID, evicting its oldest turn when full.
func (s *Store) Append(sessionID string, turn models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, _ := s.sessions.Get(sessionID)
	next := make([]models.Turn, 0, len(turns)+1)
	if s.maxTurns > 0 && len(turns) >= s.maxTurns {
		turns = turns[len(turns)-s.maxTurns+1:]
	}
	next = append(next, turns...)
	next = append(next, turn)
	s.sessions.Add(sessionID, next)
}

// History returns a copy of the session's turns, oldest first.
func (s *Store) History(sessionID string) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, ok := s.sessions.Get(sessionID)
	if !ok {
		return []models.Turn{}
	}
	return append([]models.Turn(nil), turns...)
}

// Reset forgets the session and reports whether it existed.
func (s *Store) Reset(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Remove(sessionID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Len()
}
