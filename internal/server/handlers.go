package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
)

const (
	msgMissingUserInput = "Missing 'user_input' field in form data"
	msgQueryGet         = "GET method not supported for this endpoint"
)

// handleQuery serves the chat page's form endpoint. user_input may come as a
// form field or in a JSON body.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	var present bool
	if isJSON(r) {
		var body struct {
			UserInput *string `json:"user_input"`
			SessionID string  `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.UserInput != nil {
			present = true
			req.Question = *body.UserInput
		}
		req.SessionID = body.SessionID
	} else {
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.respondError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		_, present = r.PostForm["user_input"]
		req.Question = r.PostForm.Get("user_input")
		req.SessionID = r.PostForm.Get("session_id")
	}
	if !present {
		s.respondError(w, http.StatusBadRequest, msgMissingUserInput)
		return
	}
	res, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"response": res.Answer})
}

func (s *Server) handleQueryGet(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusMethodNotAllowed, msgQueryGet)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}
	start := time.Now()
	res, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	chunks := res.RetrievedChunks
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	s.respondJSON(w, http.StatusOK, models.AskResponse{
		Answer:    res.Answer,
		SessionID: res.SessionID,
		Chunks:    chunks,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.respondJSON(w, http.StatusOK, models.HistoryResponse{SessionID: id, Turns: s.answerer.History(id)})
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	if s.transcripts == nil {
		s.respondError(w, http.StatusNotFound, "transcripts are not enabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	id := chi.URLParam(r, "id")
	list, err := s.transcripts.ListBySession(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("list transcripts failed", zap.String("session_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to read transcripts")
		return
	}
	s.respondJSON(w, http.StatusOK, models.TranscriptResponse{SessionID: id, Transcripts: list})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("reset session request", zap.String("session_id", id))
	if !s.answerer.Reset(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "deleted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondError(w, http.StatusNotImplemented, "status not available")
		return
	}
	st, err := s.status.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a pipeline failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case pipeline.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, generation.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, generation.ErrBackend),
		errors.Is(err, generation.ErrMalformedOutput),
		errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, embedding.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	var pe *pipeline.PipelineError
	if status == http.StatusBadRequest && errors.As(err, &pe) {
		msg = pe.Err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("query failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, msg)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
