// Package server provides the HTTP API over the timeline.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/metrics"
	"github.com/hyperjump/mindline/internal/pipeline"
	"github.com/hyperjump/mindline/internal/query"
)

// Analyzer runs one analysis pass.
type Analyzer interface {
	Analyze(ctx context.Context, start, end time.Time) (*pipeline.Result, error)
}

// Server is the HTTP server for the timeline API.
type Server struct {
	engine   *query.Engine
	analyzer Analyzer
	metrics  *metrics.Collector
	config   *config.ServerConfig
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves /metrics and records request metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithClock replaces time.Now for default query windows.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server. analyzer may be nil, in which case
// POST /api/v1/analyze answers 501.
func NewServer(engine *query.Engine, analyzer Analyzer, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		analyzer: analyzer,
		config:   cfg,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Analysis fetches remote sources and may outlive the read timeout.
		r.With(middleware.Timeout(15*time.Minute)).Post("/analyze", s.handleAnalyze)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/items", s.handleListItems)
			r.Post("/items/concepts", s.handleItemsByConcepts)
			r.Get("/items/{id}", s.handleGetItem)
			r.Delete("/items/{id}", s.handleDeleteItem)
			r.Get("/items/{id}/related", s.handleRelated)
			r.Get("/search", s.handleSearch)
			r.Get("/concepts/top", s.handleTopConcepts)
			r.Get("/clusters", s.handleClusters)
			r.Get("/stats", s.handleStats)
			r.Get("/windows", s.handleWindows)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs each request and records it in the metrics under its
// route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		took := time.Since(began)
		s.metrics.ObserveRequest(r.Method, route, ww.Status(), took)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("took", took),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
