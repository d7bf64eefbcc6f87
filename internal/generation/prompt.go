package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

const systemPrompt = "You answer questions about a project's documentation. " +
	"Use only the numbered context passages. If they do not contain the answer, say so."

// Prompt is the bounded input to a generator. Context holds chunk texts in rank
// order; History holds the most recent turns, oldest first.
type Prompt struct {
	System   string
	History  []models.Turn
	Context  []string
	Question string
}

// BuildPrompt assembles a prompt whose rendering is at most maxChars characters
// (maxChars <= 0 means unbounded). The question is always kept. Context passages
// are added in rank order, then up to historyTurns recent turns, newest first,
// while they fit. When not even the first passage fits it is cut to the space left.
func BuildPrompt(question string, chunks []models.Chunk, history []models.Turn, historyTurns, maxChars int) Prompt {
	p := Prompt{System: systemPrompt, Question: question}
	bounded := maxChars > 0
	budget := maxChars - runes(p.Render())
	fits := func(cost int) bool { return !bounded || cost <= budget }
	spend := func(cost int) { budget -= cost }

	for i, c := range chunks {
		cost := sectionCost(len(p.Context), "Context:\n") + runes(contextLine(i, c.Text))
		if !fits(cost) {
			if i == 0 {
				room := budget - (cost - runes(c.Text))
				if room > 0 {
					p.Context = append(p.Context, cut(c.Text, room))
					spend(budget)
				}
			}
			break
		}
		p.Context = append(p.Context, c.Text)
		spend(cost)
	}

	if historyTurns > 0 && len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if historyTurns <= 0 {
		history = nil
	}
	var kept []models.Turn
	for i := len(history) - 1; i >= 0; i-- {
		cost := sectionCost(len(kept), "Conversation:\n") + runes(turnLines(history[i]))
		if !fits(cost) {
			break
		}
		kept = append(kept, history[i])
		spend(cost)
	}
	for i := len(kept) - 1; i >= 0; i-- {
		p.History = append(p.History, kept[i])
	}
	return p
}

// Render returns the prompt as a single text block.
func (p Prompt) Render() string {
	parts := []string{p.System}
	if len(p.History) > 0 {
		lines := make([]string, len(p.History))
		for i, t := range p.History {
			lines[i] = turnLines(t)
		}
		parts = append(parts, "Conversation:\n"+strings.Join(lines, "\n"))
	}
	if len(p.Context) > 0 {
		parts = append(parts, "Context:\n"+p.ContextBlock())
	}
	parts = append(parts, "Question: "+p.Question+"\nAnswer:")
	return strings.Join(parts, "\n\n")
}

// ContextBlock returns the numbered context passages, one per line.
func (p Prompt) ContextBlock() string {
	lines := make([]string, len(p.Context))
	for i, c := range p.Context {
		lines[i] = contextLine(i, c)
	}
	return strings.Join(lines, "\n")
}

func contextLine(i int, text string) string {
	return fmt.Sprintf("[%d] %s", i+1, text)
}

func turnLines(t models.Turn) string {
	return "User: " + t.Question + "\nAssistant: " + t.Answer
}

// sectionCost is the cost of a section header and separator when a section
// with n entries gets another one.
func sectionCost(n int, header string) int {
	if n == 0 {
		return 2 + runes(header)
	}
	return 1
}

func runes(s string) int { return utf8.RuneCountInString(s) }

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
