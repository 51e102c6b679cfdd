// Package api exposes the latest pipeline results over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/config"
	"github.com/ecodata/plantpulse/internal/metrics"
)

// Server serves KPI and alert queries from the latest pipeline run.
type Server struct {
	cfg     config.ServerConfig
	logger  *zap.Logger
	state   *State
	router  chi.Router
	http    *http.Server
	metrics *metrics.HTTP
}

// New builds the server. The registry gathers both the pipeline and
// the HTTP collectors and backs /metrics.
func New(cfg config.ServerConfig, state *State, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		state:   state,
		metrics: metrics.NewHTTP(registry),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	limiter := newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	r.Route("/v1", func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Get("/kpis", s.handleKPIs)
		r.Get("/oee", s.handleOEE)
		r.Get("/shifts", s.handleShifts)
		r.Get("/pareto", s.handlePareto)
		r.Get("/maintenance", s.handleMaintenance)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/quality", s.handleQuality)
		r.Get("/status", s.handleStatus)
	})
	s.router = r

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
