// Package api serves the session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/pda"
	"github.com/pbaille/crowd/internal/session"
)

// Server handles HTTP requests for the question board
type Server struct {
	session  *session.Controller
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// New creates a new API server. gatherer may be nil to disable /metrics.
func New(s *session.Controller, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{session: s, gatherer: gatherer, log: logger}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Questions
	mux.HandleFunc("GET /questions", s.listQuestions)
	mux.HandleFunc("POST /questions", s.createQuestion)
	mux.HandleFunc("POST /questions/{address}/answers", s.submitAnswer)

	// Addresses
	mux.HandleFunc("GET /derive", s.derive)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return withCORS(mux)
}

// ServerOptions holds the listener settings for Run
type ServerOptions struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, opts ServerOptions) error {
	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", slog.String("addr", opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"program": s.session.ProgramID().String(),
	})
}

// listQuestions refreshes the snapshot and returns whatever is current. A
// superseded refresh still answers with the newer snapshot.
func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Refresh(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// CreateQuestionRequest is the request body for creating a question
type CreateQuestionRequest struct {
	Content   string `json:"content"`
	Threshold uint32 `json:"threshold"`
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.session.CreateQuestion(r.Context(), req.Content, req.Threshold)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// SubmitAnswerRequest is the request body for answering a question
type SubmitAnswerRequest struct {
	Value *float64 `json:"value"`
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	question, err := domain.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question address")
		return
	}

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	receipt, err := s.session.SubmitAnswer(r.Context(), question, *req.Value)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) derive(w http.ResponseWriter, r *http.Request) {
	content := r.URL.Query().Get("content")
	owner := s.session.Owner()
	if o := r.URL.Query().Get("owner"); o != "" {
		parsed, err := domain.ParseAddress(o)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid owner address")
			return
		}
		owner = parsed
	}

	pair, err := pda.DerivePair(content, owner, s.session.ProgramID())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// writeDomainError maps session errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrInvalidSeed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSubmissionRejected),
		errors.Is(err, domain.ErrCreationFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrFetchFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
