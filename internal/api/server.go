// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package api exposes the Facet HTTP surface: search, combination
// recommendations, user preference and interaction endpoints, plus health,
// stats and Prometheus metrics.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prashamshah115/jewelry-recommender/internal/metrics"
	"github.com/prashamshah115/jewelry-recommender/internal/pool"
	"github.com/prashamshah115/jewelry-recommender/internal/recommend"
)

// Config holds router-level settings.
type Config struct {
	RateLimit   int
	RateWindow  time.Duration
	CORSOrigins []string
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	engine   *recommend.Engine
	registry *pool.Registry
	validate *validator.Validate
	logger   zerolog.Logger
	started  time.Time
}

// NewServer creates the API server.
func NewServer(engine *recommend.Engine, registry *pool.Registry, logger zerolog.Logger) *Server {
	return &Server{
		engine:   engine,
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "api").Logger(),
		started:  time.Now(),
	}
}

// Router assembles the middleware stack and routes.
func (s *Server) Router(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(observeDuration)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			window := cfg.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(cfg.RateLimit, window))
		}

		r.Get("/stats", s.handleStats)
		r.Post("/search", s.handleSearch)
		r.Post("/recommendations/combinations", s.handleCombinations)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Put("/preferences", s.handlePreferences)
			r.Post("/interactions", s.handleInteraction)
			r.Get("/recommendations", s.handleUserRecommendations)
		})
	})

	return r
}

// requestLogger logs one line per request in the structured log.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// observeDuration records the request latency histogram keyed by the chi
// route pattern so path parameters do not explode cardinality.
func observeDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"datasets": s.registry.Loaded(),
	})
}
