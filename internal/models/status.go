package models

// StatusConfig describes how the running knowledge base was built.
type StatusConfig struct {
	CorpusPath        string `json:"corpus_path"`
	Strategy          string `json:"strategy"`
	ChunkSize         int    `json:"chunk_size,omitempty"`
	ChunkOverlap      int    `json:"chunk_overlap,omitempty"`
	IndexType         string `json:"vector_index_type"`
	RetrievalMode     string `json:"retrieval_mode"`
	K                 int    `json:"k"`
	EmbeddingModel    string `json:"embedding_model"`
	EmbeddingDims     int    `json:"embedding_dimensions"`
	GenerationBackend string `json:"generation_backend"`
	TranscriptPath    string `json:"transcript_path,omitempty"`
}

// Status is the body of the status endpoint and the status command.
type Status struct {
	Chunks          int    `json:"chunks"`
	VectorIndexSize int    `json:"vector_index_size"`
	Sessions        int    `json:"sessions"`
	TranscriptTurns *int64 `json:"transcript_turns,omitempty"`
	// TranscriptSessions counts distinct sessions in the transcript log.
	TranscriptSessions *int64        `json:"transcript_sessions,omitempty"`
	DiskUsageBytes     *int64        `json:"disk_usage_bytes,omitempty"`
	Config             *StatusConfig `json:"config,omitempty"`
}
