package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/config"
	"github.com/Fiore0312/controlli-sub000/internal/metrics"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Server is the audit HTTP API.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	shutdown   time.Duration
	checkers   map[string]HealthChecker
}

// ServerDeps bundles everything the server needs beyond its config.
type ServerDeps struct {
	Handler    *Handler
	Logger     *zap.Logger
	Registry   *metrics.Registry
	Prometheus prometheus.Gatherer
	Checkers   map[string]HealthChecker
}

func NewServer(cfg config.ServerConfig, deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:   logger,
		shutdown: cfg.ShutdownTimeout,
		checkers: deps.Checkers,
	}
	if s.shutdown <= 0 {
		s.shutdown = 30 * time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	gatherer := deps.Prometheus
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := deps.Handler
	mux.HandleFunc("POST /api/v1/analyses", h.handleAnalyze)
	mux.HandleFunc("GET /api/v1/analyses/{technician}/{date}", h.handleGetAnalysis)
	mux.HandleFunc("GET /api/v1/analyses/{technician}/{date}/findings", h.handleGetFindings)
	mux.HandleFunc("POST /api/v1/corrections/{id}/response", h.handleCorrectionResponse)

	middlewares := []Middleware{
		requestIDMiddleware,
		loggingMiddleware(logger),
		metricsMiddleware(deps.Registry),
		recoveryMiddleware(logger),
		timeoutMiddleware(30 * time.Second),
	}

	var handler http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        handler,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	s.logger.Info("shutting down API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness pings every registered dependency. A single failure marks
// the whole server not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.checkers))
	for name, check := range s.checkers {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ready"}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	writeJSON(w, status, body)
}
