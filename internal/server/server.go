// Package server provides the HTTP API and chat page for kotae.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

//go:embed static
var staticFiles embed.FS

// Answerer answers questions and manages conversation sessions.
type Answerer interface {
	Answer(ctx context.Context, req models.AskRequest) (*models.QueryResult, error)
	History(sessionID string) []models.Turn
	Reset(sessionID string) bool
}

// StatusReporter describes the running knowledge base.
type StatusReporter interface {
	Status(ctx context.Context) (*models.Status, error)
}

// TranscriptLister reads the persisted transcript of a session.
type TranscriptLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Transcript, error)
}

// Server is the HTTP server for the kotae API.
type Server struct {
	answerer    Answerer
	status      StatusReporter
	transcripts TranscriptLister
	config      *config.ServerConfig
	logger      *zap.Logger
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTranscripts serves session transcripts from l. Without it the
// transcript endpoint answers 404.
func WithTranscripts(l TranscriptLister) Option {
	return func(s *Server) { s.transcripts = l }
}

// NewServer creates a server with the given dependencies.
func NewServer(answerer Answerer, status StatusReporter, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		answerer: answerer,
		status:   status,
		config:   cfg,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Post("/query", s.handleQuery)
	r.Get("/query", s.handleQueryGet)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/sessions/{id}/history", s.handleHistory)
		r.Get("/sessions/{id}/transcripts", s.handleTranscripts)
		r.Delete("/sessions/{id}", s.handleResetSession)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
// A server stopped through Stop returns nil.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is done, then drains in-flight requests for up to grace.
// It returns early with the listen error if the server cannot start.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down...")
	stopCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	stopErr := s.Stop(stopCtx)
	if err := <-errc; err != nil {
		return err
	}
	return stopErr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(staticFiles, "static/index.html")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "chat page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
