package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"auto_newsletter_digest/pipeline"
	"auto_newsletter_digest/schedule"
)

// Runner is the guarded entry point shared with the cron schedule.
type Runner interface {
	Trigger(ctx context.Context) error
	NextRun() time.Time
}

// State exposes what the status endpoint reports.
type State interface {
	LastResult() *pipeline.RunResult
	ElapsedDays() int
}

// LastRunReader reads the durable last-run timestamp.
type LastRunReader interface {
	LastRun() (time.Time, bool)
}

type Server struct {
	runner  Runner
	state   State
	lastRun LastRunReader
	logger  arbor.ILogger
}

func New(runner Runner, state State, lastRun LastRunReader, logger arbor.ILogger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner required")
	}
	if state == nil || lastRun == nil {
		return nil, errors.New("run state required")
	}
	return &Server{runner: runner, state: state, lastRun: lastRun, logger: logger}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/runs", s.handleRunCreate)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	return s.logMiddleware(mux)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting web server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// --- Handlers ---

type errorResp struct {
	Error  string              `json:"error"`
	Result *pipeline.RunResult `json:"result,omitempty"`
}

type statusResp struct {
	LastRun     *time.Time          `json:"last_run,omitempty"`
	NextRun     *time.Time          `json:"next_run,omitempty"`
	ElapsedDays int                 `json:"elapsed_days"`
	LastResult  *pipeline.RunResult `json:"last_result,omitempty"`
}

func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	// the run outlives a dropped client; delivery must not stop halfway
	ctx := context.WithoutCancel(r.Context())
	err := s.runner.Trigger(ctx)
	switch {
	case errors.Is(err, schedule.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResp{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, errorResp{Error: err.Error(), Result: s.state.LastResult()})
	default:
		writeJSON(w, http.StatusOK, s.state.LastResult())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResp{
		ElapsedDays: s.state.ElapsedDays(),
		LastResult:  s.state.LastResult(),
	}
	if last, ok := s.lastRun.LastRun(); ok {
		resp.LastRun = &last
	}
	if next := s.runner.NextRun(); !next.IsZero() {
		resp.NextRun = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	res := s.state.LastResult()
	if res == nil || res.HTML == "" {
		http.Error(w, "no newsletter rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(res.HTML))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
