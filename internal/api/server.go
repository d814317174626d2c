package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensource-finance/talon/internal/dataset"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, service *engine.Service, store domain.GraphStore, loader *dataset.SQLStore, cache domain.Cache, bus domain.EventBus, collector *metrics.Collector, gatherer prometheus.Gatherer, version string) *Server {
	handler := NewHandler(service, store, loader, cache, bus, gatherer, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)               // CORS for browser clients
	router.Use(RecoverMiddleware)            // Recover from panics
	router.Use(TracingMiddleware)            // OpenTelemetry tracing
	router.Use(LoggingMiddleware)            // Request logging
	router.Use(MetricsMiddleware(collector)) // Request metrics
	router.Use(middleware.RealIP)            // Extract real IP
	router.Use(middleware.Compress(5))       // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Prometheus scrape endpoint
	router.Method(http.MethodGet, "/metrics", handler.Metrics())

	// Analysis
	router.Post("/analyze", handler.Analyze)
	router.Get("/report", handler.Report)
	router.Post("/query", handler.Query)
	router.Get("/rule", handler.Rule)

	// Dataset management
	router.Post("/dataset/generate", handler.Generate)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
