// Package cli provides output formatting and an HTTP client for the kotae CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and the chunks it came from.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s\n", resp.Answer)
	if len(resp.Chunks) > 0 {
		fmt.Fprintf(w, "\nSources (%d, %dms, session %s):\n", len(resp.Chunks), resp.QueryTime, resp.SessionID)
		for _, c := range resp.Chunks {
			fmt.Fprintf(w, "  - %s\n", chunkLabel(c))
		}
	}
	return nil
}

// WriteChunks writes loader output, one chunk per entry.
func WriteChunks(w io.Writer, chunks []models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		if chunks == nil {
			chunks = []models.Chunk{}
		}
		return writeJSON(w, chunks)
	}
	for _, c := range chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s\n", c.ID, chunkLabel(c))
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(c.Text, 40))
	}
	fmt.Fprintf(w, "%d chunk(s)\n", len(chunks))
	return nil
}

// WriteStatus writes knowledge base status.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "chunks:             %d   # chunks loaded from the corpus\n", st.Chunks)
	fmt.Fprintf(w, "vector_index_size:  %d   # vectors in the semantic index\n", st.VectorIndexSize)
	fmt.Fprintf(w, "sessions:           %d   # live conversation sessions\n", st.Sessions)
	if st.TranscriptTurns != nil {
		fmt.Fprintf(w, "transcript_turns:   %d   # turns in the transcript log\n", *st.TranscriptTurns)
	}
	if st.TranscriptSessions != nil {
		fmt.Fprintf(w, "transcript_sessions: %d  # sessions in the transcript log\n", *st.TranscriptSessions)
	}
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # corpus + transcript on disk\n", *st.DiskUsageBytes)
	}
	if c := st.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "corpus_path:        %s\n", c.CorpusPath)
		fmt.Fprintf(w, "strategy:           %s\n", c.Strategy)
		if c.ChunkSize > 0 {
			fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		}
		if c.ChunkOverlap > 0 {
			fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		}
		fmt.Fprintf(w, "vector_index_type:  %s\n", c.IndexType)
		fmt.Fprintf(w, "retrieval_mode:     %s\n", c.RetrievalMode)
		fmt.Fprintf(w, "k:                  %d\n", c.K)
		fmt.Fprintf(w, "embedding_model:    %s (%d dims)\n", c.EmbeddingModel, c.EmbeddingDims)
		fmt.Fprintf(w, "generation_backend: %s\n", c.GenerationBackend)
		if c.TranscriptPath != "" {
			fmt.Fprintf(w, "transcript_path:    %s\n", c.TranscriptPath)
		}
	}
	return nil
}

func chunkLabel(c models.Chunk) string {
	label := c.SourceRef
	if c.Heading != "" {
		label += " > " + utils.Truncate(c.Heading, 60)
	}
	return label
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
