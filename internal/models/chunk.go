// Package models defines core data structures for chunks, conversations, and answers.
package models

// Chunk is a retrievable unit of source text. A chunk never spans two source documents.
type Chunk struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	SourceRef string `json:"source_ref"`
	Heading   string `json:"heading,omitempty"`
	Position  int    `json:"position"` // ordinal of the chunk within its source
}

// IndexEntry pairs a chunk with its embedding. The vector index owns the pairing.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a chunk with its similarity to a query (higher is closer).
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Texts returns the text of each chunk, in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
