// Package api exposes the reporter's small operational HTTP surface:
// liveness and the outcome of the most recent run. The process is otherwise
// unattended, so this is what a dashboard or uptime probe scrapes.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goodsteward/donation-reporter/internal/dispatch"
)

// StatusStore holds the last run result. The cron goroutine writes it; HTTP
// handlers read it.
type StatusStore struct {
	mu   sync.RWMutex
	last *dispatch.Result
}

// NewStatusStore returns an empty store.
func NewStatusStore() *StatusStore { return &StatusStore{} }

// Set records the latest run result.
func (s *StatusStore) Set(r dispatch.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

// Last returns the most recent result, or ok=false before the first run.
func (s *StatusStore) Last() (dispatch.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return dispatch.Result{}, false
	}
	return *s.last, true
}

// NewServer builds the ops router. The returned http.Handler is ready for
// http.Server.
func NewServer(status *StatusStore, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		last, ok := status.Last()
		if !ok {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"state": "waiting", "message": "no runs yet"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"state":        runState(last),
			"run_id":       last.RunID,
			"record_count": last.RecordCount,
			"file_paths":   last.FilePaths,
			"message":      last.Message,
			"finished_at":  last.FinishedAt,
		})
	})

	return r
}

func runState(r dispatch.Result) string {
	if r.Success {
		return "ok"
	}
	return "failed"
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
