// Package health serves liveness, readiness and counters over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/m3rciful/coffeebot/core/buildinfo"
	"github.com/m3rciful/coffeebot/core/logger"
)

// Check reports a dependency failure as a non-nil error.
type Check func(ctx context.Context) error

// Server exposes /healthz, /readyz and /stats.
type Server struct {
	listen string

	mu     sync.RWMutex
	checks map[string]Check
	stats  map[string]func() any
}

// NewServer creates a server bound to listen once Run is called.
func NewServer(listen string) *Server {
	return &Server{
		listen: listen,
		checks: make(map[string]Check),
		stats:  make(map[string]func() any),
	}
}

// AddCheck registers a readiness check.
func (s *Server) AddCheck(name string, c Check) {
	s.mu.Lock()
	s.checks[name] = c
	s.mu.Unlock()
}

// AddStats registers a counter source rendered under name in /stats.
func (s *Server) AddStats(name string, fn func() any) {
	s.mu.Lock()
	s.stats[name] = fn
	s.mu.Unlock()
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readiness).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.counters).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "health", "listen", slog.String("addr", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.String(),
	})
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	code := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()
		if err := check(ctx); err != nil {
			code = http.StatusServiceUnavailable
			results[name] = err.Error()
			logger.Warn(ctx, "health", "check.fail", slog.String("check", name), slog.String("error", err.Error()))
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, code, results)
}

func (s *Server) counters(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make(map[string]any, len(s.stats))
	for name, fn := range s.stats {
		out[name] = fn()
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn(context.Background(), "health", "write.fail", slog.String("error", err.Error()))
	}
}
