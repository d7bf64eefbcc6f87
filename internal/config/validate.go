package config

import (
	"errors"
	"fmt"
)

// PromptOverheadChars bounds the fixed part of a rendered prompt: the system
// instructions, the question label and the answer cue.
const PromptOverheadChars = 256

// MinContextChars is the context room a prompt must leave next to a
// question of the maximum allowed length.
const MinContextChars = 200

// MinPromptChars returns the smallest max_prompt_chars that still fits a
// question of maxQuestionChars and MinContextChars of context.
func MinPromptChars(maxQuestionChars int) int {
	return PromptOverheadChars + maxQuestionChars + MinContextChars
}

// Validate reports settings that cannot work. It expects defaults to be applied.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.Server.RequestTimeout >= 0, "server.request_timeout must not be negative")
	check(c.Server.MaxQuestionChars > 0, "server.max_question_chars must be positive")

	check(c.Corpus.ChunkSize > 0, "corpus.chunk_size must be positive")
	check(c.Corpus.ChunkOverlap >= 0 && c.Corpus.ChunkOverlap < c.Corpus.ChunkSize,
		"corpus.chunk_overlap %d must be in [0, chunk_size)", c.Corpus.ChunkOverlap)

	check(c.Embedding.Dimensions > 0, "embedding.dimensions must be positive")
	check(c.Embedding.CacheSize >= 0, "embedding.cache_size must not be negative")

	g := c.Generation
	check(g.Temperature >= 0, "generation.temperature must not be negative")
	check(g.TopP > 0 && g.TopP <= 1, "generation.top_p %v must be in (0, 1]", g.TopP)
	check(g.MaxTokens > 0, "generation.max_tokens must be positive")
	check(g.HistoryTurns >= 0, "generation.history_turns must not be negative")
	if g.MaxPromptChars > 0 {
		floor := MinPromptChars(c.Server.MaxQuestionChars)
		check(g.MaxPromptChars >= floor,
			"generation.max_prompt_chars %d leaves no room for context; need at least %d for max_question_chars %d",
			g.MaxPromptChars, floor, c.Server.MaxQuestionChars)
	}

	r := c.Retrieval
	check(r.K > 0, "retrieval.k must be positive")
	check(r.Candidates > 0, "retrieval.candidates must be positive")
	check(r.KeywordWeight >= 0 && r.SemanticWeight >= 0, "retrieval weights must not be negative")
	check(r.KeywordFuzziness >= 0 && r.KeywordFuzziness <= 2, "retrieval.keyword_fuzziness %d must be in [0, 2]", r.KeywordFuzziness)
	check(r.HeadingBoost > 0, "retrieval.heading_boost must be positive")

	check(c.Memory.MaxTurns > 0, "memory.max_turns must be positive")
	check(c.Memory.MaxSessions > 0, "memory.max_sessions must be positive")

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
