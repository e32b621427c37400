//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server provides the HTTP server that hosts chat sessions over
// websockets.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/metrics"
	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
	"github.com/pgEdge/pgedge-rag-chat/internal/ratelimit"
)

// PipelineManager defines the interface for pipeline management.
type PipelineManager interface {
	Orchestrator() *pipeline.Orchestrator
	Describe() map[string]string
	Check(ctx context.Context) error
	Close() error
}

// Server is the HTTP server for chat sessions.
type Server struct {
	config    *config.Config
	pipelines PipelineManager
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	handler   http.Handler
	server    *http.Server

	// Sessions derive their context from baseCtx so Shutdown can end them.
	baseCtx  context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
	active   atomic.Int64
}

// Option configures optional server components.
type Option func(*Server)

// WithMetrics records HTTP and session metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimiter limits how often a client may open a session.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// New creates a new HTTP server.
func New(cfg *config.Config, pm PipelineManager, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		pipelines: pm,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	s.handler = s.routes()

	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ActiveSessions returns the number of open chat sessions.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.ListenAddress, s.config.Server.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.Serve(listener)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.server = &http.Server{
		Addr:              l.Addr().String(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	s.logger.Info("starting server",
		"address", s.server.Addr,
		"tls", s.config.Server.TLS.Enabled)

	if s.config.Server.TLS.Enabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		return s.server.ServeTLS(l,
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}

	return s.server.Serve(l)
}

// Shutdown stops accepting connections, cancels open sessions and waits
// for them to close until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server", "sessions", s.active.Load())

	s.cancel()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("sessions still open: %w", ctx.Err()))
	}
	return err
}

// Addr returns the server's address. Returns empty string if not started.
func (s *Server) Addr() string {
	if s.server != nil {
		return s.server.Addr
	}
	return ""
}
