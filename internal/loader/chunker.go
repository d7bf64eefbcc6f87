package loader

import "strings"

// Chunker splits text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// Non-positive sizes fall back to 200 words; overlap is clamped below size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split returns the windows of text. Whitespace inside a window is collapsed to single spaces.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var windows []string
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return windows
}

// Preprocess normalizes text for indexing (trim, collapse whitespace).
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
