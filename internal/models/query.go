package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSessionID is used when a caller does not name a conversation.
const DefaultSessionID = "default"

// DefaultMaxQuestionChars bounds question length when no limit is configured.
const DefaultMaxQuestionChars = 2000

var (
	// ErrEmptyQuestion is returned for a missing or blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrQuestionTooLong is returned when a question exceeds the configured limit.
	ErrQuestionTooLong = errors.New("question is too long")
)

// AskRequest is a question submitted by a caller, optionally bound to a session.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// Validate trims the request and checks it. maxChars <= 0 uses DefaultMaxQuestionChars.
// A blank session ID is replaced by DefaultSessionID.
func (r *AskRequest) Validate(maxChars int) error {
	r.Question = strings.TrimSpace(r.Question)
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.Question == "" {
		return ErrEmptyQuestion
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxQuestionChars
	}
	if n := utf8.RuneCountInString(r.Question); n > maxChars {
		return fmt.Errorf("%w: %d characters (max %d)", ErrQuestionTooLong, n, maxChars)
	}
	if r.SessionID == "" {
		r.SessionID = DefaultSessionID
	}
	return nil
}
