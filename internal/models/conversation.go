package models

import "time"

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// QueryResult is the outcome of answering one question. It is never persisted.
type QueryResult struct {
	Answer          string  `json:"answer"`
	RetrievedChunks []Chunk `json:"retrieved_chunks"`
	SessionID       string  `json:"session_id"`
}

// AskResponse is the JSON body returned by the ask endpoint.
type AskResponse struct {
	Answer    string  `json:"answer"`
	SessionID string  `json:"session_id"`
	Chunks    []Chunk `json:"chunks"`
	QueryTime int64   `json:"query_time_ms"`
}

// Transcript is one persisted turn with the IDs of the chunks it was answered from.
type Transcript struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	ChunkIDs  []int     `json:"chunk_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptResponse is the JSON body returned for a session's persisted transcript.
type TranscriptResponse struct {
	SessionID   string       `json:"session_id"`
	Transcripts []Transcript `json:"transcripts"`
}

// HistoryResponse is the JSON body returned for a session's history.
type HistoryResponse struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}
