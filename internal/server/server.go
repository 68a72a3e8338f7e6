// Package server exposes the verification pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verichain-labs/verichain/internal/anchor"
	"github.com/verichain-labs/verichain/internal/config"
	"github.com/verichain-labs/verichain/internal/content"
	"github.com/verichain-labs/verichain/internal/pipeline"
	"github.com/verichain-labs/verichain/internal/store"
)

// PinStatus reports pinning service availability for the health endpoint.
type PinStatus interface {
	Configured() bool
	Healthy(ctx context.Context) bool
}

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Pipeline   *pipeline.Pipeline
	Store      store.Store
	Classifier pipeline.Classifier
	Pinner     PinStatus
	Anchorer   anchor.Anchorer
	Temp       *content.TempStore
	MaxBytes   int64
}

// Server is the HTTP surface.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	metrics *Metrics
	limiter *rate.Limiter
	router  chi.Router
}

// New builds the server and its routes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.MaxBytes <= 0 {
		deps.MaxBytes = content.DefaultMaxBytes
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		metrics: NewMetrics(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.logRequests)
	r.Use(s.metrics.Middleware)
	r.Use(s.rateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Post("/verify/hash", s.handleVerifyHash)
		r.Get("/verify/{hash}", s.handleGetVerification)
		r.Get("/history", s.handleHistory)
		r.Get("/health", s.handleHealth)
		r.Post("/upload", s.handleUpload)
		r.Post("/admin/cleanup", s.handleAdminCleanup)
		r.Get("/admin/stats", s.handleAdminStats)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
