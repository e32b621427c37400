//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// routes builds the router and its middleware chain.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if s.config.Server.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.Server.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         86400,
		}))
	}

	r.Get("/v1/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// Chat sessions
	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/", s.handleChat)
		r.Get("/v1/chat", s.handleChat)
	})

	return r
}
