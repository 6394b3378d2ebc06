package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// readHeaderTimeout is the timeout for reading HTTP request headers.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout is the timeout for graceful shutdown of the metrics server.
	shutdownTimeout = 5 * time.Second
	// checkTimeout bounds a single readiness probe.
	checkTimeout = 3 * time.Second
)

// Check is a named readiness probe for a backend the server depends on.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Server is an HTTP server that exposes Prometheus metrics, liveness and readiness endpoints.
type Server struct {
	httpServer *http.Server
	checks     []Check
	logger     *zap.Logger
}

// NewServer creates a new metrics HTTP server on the given port.
// /readyz reports 503 while any of checks fails.
func NewServer(port int, logger *zap.Logger, checks ...Check) *Server {
	s := &Server{
		checks: checks,
		logger: logger.Named("metrics_server"),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", s.handleReady)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the HTTP handler serving all endpoints.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failures := s.runChecks(r.Context())

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	if len(failures) > 0 {
		status = "not ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": failures,
	})
}

// runChecks probes every check concurrently and returns the failures by name.
func (s *Server) runChecks(ctx context.Context) map[string]string {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = make(map[string]string)
	)
	for _, c := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			if err := c.Fn(checkCtx); err != nil {
				s.logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
				mu.Lock()
				failures[c.Name] = err.Error()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failures
}

// Start starts the metrics HTTP server in a goroutine.
// It returns immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting metrics server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Shutdown gracefully shuts down the metrics HTTP server.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down metrics server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown error", zap.Error(err))
	}
}
