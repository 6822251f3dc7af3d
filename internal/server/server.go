// Package server provides the HTTP API for triggering and inspecting pipeline runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/db"
	"github.com/jonathan/benchscope/internal/observability"
	"github.com/jonathan/benchscope/internal/pipeline"
	"github.com/jonathan/benchscope/internal/types"
)

const (
	defaultRunsLimit = 20
	defaultSince     = 24 * time.Hour
	shutdownTimeout  = 30 * time.Second
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Result, error)
}

// RunStore reads pipeline run records
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
}

// CandidateStore reads stored candidates
type CandidateStore interface {
	ListCandidates(ctx context.Context, filter db.CandidateFilter) ([]types.RankedCandidate, error)
}

// Config holds server configuration
type Config struct {
	Port int
}

// Server represents the HTTP server. At most one pipeline run is active at a time.
type Server struct {
	httpServer *http.Server
	runner     Runner
	runs       RunStore
	candidates CandidateStore
	logger     zerolog.Logger

	running    atomic.Bool
	runCtx     context.Context
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
}

// RunRequest is the optional body of POST /runs
type RunRequest struct {
	Trigger    string `json:"trigger"`
	DryRun     bool   `json:"dry_run"`
	SkipNotify bool   `json:"skip_notify"`
}

// New creates a server. runs and candidates may be nil when no database is
// configured; their endpoints then answer 503.
func New(cfg Config, runner Runner, runs RunStore, candidates CandidateStore, logger zerolog.Logger) *Server {
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:     runner,
		runs:       runs,
		candidates: candidates,
		logger:     observability.Component(logger, "server"),
		runCtx:     runCtx,
		cancelRuns: cancel,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute, // streamed runs stay open until the run finishes
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /runs", s.handleTriggerRun)
	mux.HandleFunc("POST /runs/stream", s.handleRunStream)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /candidates", s.handleListCandidates)
	return s.withLogging(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully and waits
// for an in-flight run to stop.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.cancelRuns()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	s.cancelRuns()
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"run_in_progress": s.running.Load(),
	})
}

// handleTriggerRun starts a run in the background and returns immediately
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeRunRequest(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.errorResponse(w, ErrRunInProgress)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.execute(s.runCtx, opts)
	}()

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"trigger": opts.Trigger,
	})
}

// handleRunStream runs the pipeline and streams progress as server-sent events
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeRunRequest(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.errorResponse(w, ErrRunInProgress)
		return
	}
	defer s.running.Store(false)

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	opts.OnProgress = func(ev pipeline.ProgressEvent) {
		if err := sse.WriteEvent("progress", ev); err != nil {
			s.logger.Debug().Err(err).Msg("failed to write progress event")
		}
	}

	// The run stops when either the client goes away or the server shuts down
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.runCtx, cancel)
	defer stop()

	result, err := s.execute(ctx, opts)
	if result == nil {
		sse.WriteError(err.Error())
		return
	}
	if err != nil {
		sse.WriteError(err.Error())
	}
	sse.WriteComplete(result)
}

// execute runs the pipeline and logs the outcome
func (s *Server) execute(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Result, error) {
	result, err := s.runner.Run(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Str("trigger", opts.Trigger).Msg("pipeline run failed")
	}
	if result == nil && err == nil {
		err = errors.New("pipeline returned no result")
	}
	return result, err
}

func decodeRunRequest(r *http.Request) (pipeline.RunOptions, error) {
	req := RunRequest{Trigger: "api"}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return pipeline.RunOptions{}, &ErrValidation{Field: "body", Message: "invalid JSON"}
		}
	}
	if req.Trigger == "" {
		req.Trigger = "api"
	}
	return pipeline.RunOptions{Trigger: req.Trigger, DryRun: req.DryRun, SkipNotify: req.SkipNotify}, nil
}

// handleListRuns returns recent run records
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, ErrNoDatabase)
		return
	}
	limit, err := intParam(r, "limit", defaultRunsLimit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns one run record
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, ErrNoDatabase)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if run == nil {
		s.errorResponse(w, &ErrNotFound{What: "run", ID: id.String()})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListCandidates returns stored candidates, best first.
// Query parameters: since (Go duration, default 24h), min_score, limit.
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	if s.candidates == nil {
		s.errorResponse(w, ErrNoDatabase)
		return
	}

	filter := db.CandidateFilter{}
	since := defaultSince
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			s.errorResponse(w, &ErrValidation{Field: "since", Message: "must be a positive duration such as 24h"})
			return
		}
		since = d
	}
	filter.Since = time.Now().Add(-since)

	if v := r.URL.Query().Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil || score < 0 || score > 10 {
			s.errorResponse(w, &ErrValidation{Field: "min_score", Message: "must be a number between 0 and 10"})
			return
		}
		filter.MinScore = score
	}
	limit, err := intParam(r, "limit", db.DefaultListLimit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	filter.Limit = limit

	candidates, err := s.candidates.ListCandidates(r.Context(), filter)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if candidates == nil {
		candidates = []types.RankedCandidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &ErrValidation{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response with the status HTTPStatus maps it to.
// Internal errors are logged and not echoed to the client.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
		message = "internal error"
	}
	s.jsonResponse(w, status, map[string]string{"error": message})
}
