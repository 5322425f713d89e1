// Package preview serves generated site artifacts locally and rebuilds
// them when the raw snapshot or photo directories change.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/folkevalget/folkevalget/metrics"
)

// RebuildFunc re-derives site artifacts after a change. Only one
// rebuild is in flight at a time.
type RebuildFunc func(ctx context.Context) error

// Server serves the site directory over HTTP with liveness and metrics
// endpoints, and optionally watches for changes that trigger rebuilds.
type Server struct {
	siteDir  string
	addr     string
	logger   *slog.Logger
	rebuild  RebuildFunc
	watch    []string
	debounce time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRebuild installs a rebuild function and the directories whose
// changes trigger it.
func WithRebuild(fn RebuildFunc, dirs ...string) Option {
	return func(s *Server) {
		s.rebuild = fn
		s.watch = dirs
	}
}

// WithDebounce sets how long the watcher waits for a burst of changes
// to settle before rebuilding.
func WithDebounce(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// NewServer creates a preview server for the given site directory.
func NewServer(siteDir string, opts ...Option) *Server {
	s := &Server{
		siteDir:  siteDir,
		addr:     ":8090",
		logger:   slog.Default(),
		debounce: watchDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the preview routes: site files at /, liveness at
// /healthz, prometheus metrics at /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(s.siteDir)))
	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.rebuild != nil && len(s.watch) > 0 {
		w, err := newWatcher(s.watch, s.debounce, s.logger)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.stop()
		go w.run(ctx)
		go s.rebuildLoop(ctx, w.Triggers())
		s.logger.Info("watching for changes", "dirs", s.watch, "debounce", s.debounce)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("preview server listening", "addr", s.addr, "dir", s.siteDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// rebuildLoop runs one rebuild per trigger.
func (s *Server) rebuildLoop(ctx context.Context, triggers <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
			start := time.Now()
			if err := s.rebuild(ctx); err != nil {
				s.logger.Error("rebuild failed", "error", err)
				continue
			}
			s.logger.Info("site rebuilt", "elapsed", time.Since(start))
		}
	}
}
