// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Tokenize lowercases text and splits it into runs of letters and digits.
// Apostrophes inside a word are dropped ("don't" -> "dont").
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '\'' || r == '’':
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// ContentTokens returns Tokenize(text) without stopwords.
func ContentTokens(text string) []string {
	all := Tokenize(text)
	out := all[:0]
	for _, t := range all {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// SplitSentences splits text at '.', '!' and '?' followed by whitespace or end of text,
// and at blank lines. Returned sentences are trimmed and non-empty.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	emit := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				emit(i + 1)
			}
			continue
		}
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			emit(i + 1)
		}
	}
	if start < len(runes) {
		emit(len(runes))
	}
	return sentences
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// IsStopword reports whether the lowercase token is a common English function word.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
