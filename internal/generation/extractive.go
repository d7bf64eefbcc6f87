package generation

import (
	"context"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

// ExtractiveGenerator answers with the context sentences that share the most
// content words with the question. It needs no model and is deterministic.
type ExtractiveGenerator struct {
	maxSentences int
}

// NewExtractiveGenerator returns a generator that answers with at most
// maxSentences sentences (default 2).
func NewExtractiveGenerator(maxSentences int) *ExtractiveGenerator {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &ExtractiveGenerator{maxSentences: maxSentences}
}

// Name returns "extractive".
func (g *ExtractiveGenerator) Name() string { return "extractive" }

// Generate picks the best-scoring sentences, in context order. When no sentence
// shares a word with the question, the first sentence of the top passage is used.
// params.MaxTokens caps the answer length in words.
func (g *ExtractiveGenerator) Generate(ctx context.Context, prompt Prompt, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	query := make(map[string]struct{})
	for _, t := range utils.ContentTokens(prompt.Question) {
		query[t] = struct{}{}
	}

	type candidate struct {
		text  string
		score int
	}
	var cands []candidate
	best := 0
	for _, passage := range prompt.Context {
		for _, s := range utils.SplitSentences(passage) {
			seen := make(map[string]struct{})
			for _, t := range utils.ContentTokens(s) {
				if _, ok := query[t]; ok {
					seen[t] = struct{}{}
				}
			}
			cands = append(cands, candidate{text: s, score: len(seen)})
			if len(seen) > best {
				best = len(seen)
			}
		}
	}
	if len(cands) == 0 {
		return "", ErrMalformedOutput
	}

	var picked []string
	if best == 0 {
		picked = []string{cands[0].text}
	} else {
		for _, c := range cands {
			if c.score == best {
				picked = append(picked, c.text)
				if len(picked) == g.maxSentences {
					break
				}
			}
		}
	}
	return limitWords(strings.Join(picked, " "), params.MaxTokens), nil
}

func limitWords(s string, n int) string {
	if n <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
