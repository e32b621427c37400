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
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pgEdge/pgedge-rag-chat/internal/session"
)

const healthCheckTimeout = 5 * time.Second

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status         string            `json:"status"`
	Providers      map[string]string `json:"providers,omitempty"`
	ActiveSessions int64             `json:"active_sessions"`
	Error          string            `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /v1/health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:         "healthy",
		Providers:      s.pipelines.Describe(),
		ActiveSessions: s.active.Load(),
	}

	if err := s.pipelines.Check(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleChat upgrades the request and runs a session until the peer
// leaves or the server shuts down.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		// Accept has already written the response.
		s.logger.Debug("websocket upgrade failed",
			"error", err,
			"remote", r.RemoteAddr)
		return
	}

	s.sessions.Add(1)
	defer s.sessions.Done()
	s.active.Add(1)
	defer s.active.Add(-1)
	if s.metrics != nil {
		s.metrics.SessionStarted()
		defer s.metrics.SessionEnded()
	}

	// End the session when either the request or the server is done.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	sess := session.New(session.Config{
		Channel:   session.NewWebSocketChannel(conn, s.config.Server.MaxMessageBytes),
		Processor: s.pipelines.Orchestrator(),
		Logger: s.logger.With(
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		),
	})

	if err := sess.Run(ctx); err != nil {
		s.logger.Warn("session ended with error",
			"session", sess.ID(),
			"error", err)
	}
}

// acceptOptions maps the CORS origin list onto websocket origin checks.
// Without CORS only same-origin browsers may connect.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	cors := s.config.Server.CORS
	if !cors.Enabled || len(cors.AllowedOrigins) == 0 {
		return nil
	}
	if slices.Contains(cors.AllowedOrigins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}

	patterns := make([]string, 0, len(cors.AllowedOrigins))
	for _, origin := range cors.AllowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
