package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the optional parts of the middleware stack
type RouterConfig struct {
	// RateLimit is requests per minute per IP, 0 disables limiting
	RateLimit int
	// CORSOrigins enables CORS for these origins when non-empty
	CORSOrigins []string
	// Registry receives the HTTP metrics and backs /metrics. Nil creates a fresh one.
	Registry *prometheus.Registry
	// Timeout bounds each request, 0 means 60 seconds
	Timeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Off, the rate limiter keys on the TCP peer and those headers are ignored.
	TrustProxy bool
}

// NewRouter wires handlers and middleware
func NewRouter(h *Handlers, logger *zap.Logger, cfg RouterConfig) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	metrics := NewMetrics(reg)

	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(timeout))
	r.Use(MaxBodySize)

	// CORS (if enabled)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORSMiddleware(cfg.CORSOrigins))
	}

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.Ping)

		r.Group(func(r chi.Router) {
			// Rate limiting (if enabled)
			if cfg.RateLimit > 0 {
				r.Use(NewRateLimiter(cfg.RateLimit, time.Minute).Middleware)
			}
			r.Post("/embed", h.Embed)
		})
	})

	return r
}
