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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/metrics"
	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
	"github.com/pgEdge/pgedge-rag-chat/internal/ratelimit"
	"github.com/pgEdge/pgedge-rag-chat/internal/search"
)

// mockCompletionProvider streams fragments and answers refinement calls.
type mockCompletionProvider struct {
	mu        sync.Mutex
	fragments []string
	refined   string
	requests  []llm.CompletionRequest
}

func (m *mockCompletionProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return &llm.CompletionResponse{Content: m.refined}, nil
}

func (m *mockCompletionProvider) CompleteStream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)
	go func() {
		defer close(chunkChan)
		defer close(errChan)
		for _, f := range m.fragments {
			select {
			case chunkChan <- llm.StreamChunk{Content: f}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()
	return chunkChan, errChan
}

func (m *mockCompletionProvider) ModelName() string { return "mock-model" }

type mockSearcher struct {
	hits []search.Hit
}

func (m *mockSearcher) Search(_ context.Context, _ string, k int) ([]search.Hit, error) {
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

// failingManager reports an unhealthy backend.
type failingManager struct {
	*pipeline.Manager
}

func (f failingManager) Check(context.Context) error {
	return errors.New("connection refused")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1"
	cfg.Rerank.Provider = config.ProviderNone
	return cfg
}

func testManager(cfg *config.Config, completion *mockCompletionProvider) *pipeline.Manager {
	return pipeline.NewManagerWithProviders(
		pipeline.ManagerConfig{Config: cfg, Logger: quietLogger()},
		pipeline.Providers{
			Completion: completion,
			Searcher: &mockSearcher{hits: []search.Hit{
				{ID: "1", Text: "Article 1 applies to sales.", Score: 0.9},
				{ID: "2", Text: "Article 2 excludes consumer sales.", Score: 0.8},
			}},
		},
	)
}

func testServer(t *testing.T, opts ...Option) (*Server, *httptest.Server, *mockCompletionProvider) {
	t.Helper()
	cfg := testConfig()
	completion := &mockCompletionProvider{fragments: []string{"Hi", " there"}, refined: "refined question"}
	srv := New(cfg, testManager(cfg, completion), quietLogger(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, completion
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

// readTurn collects text frames up to and including the end sentinel.
func readTurn(t *testing.T, ctx context.Context, conn *websocket.Conn) []string {
	t.Helper()
	var frames []string
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read failed after %v: %v", frames, err)
		}
		if typ != websocket.MessageText {
			t.Fatalf("expected text frame, got %v", typ)
		}
		frames = append(frames, string(data))
		if string(data) == pipeline.EndSentinel {
			return frames
		}
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", resp.Status)
	}
	if resp.Providers["completion"] != "mock-model" {
		t.Errorf("expected completion mock-model, got %v", resp.Providers)
	}
	if resp.Providers["rerank"] != config.ProviderNone {
		t.Errorf("expected rerank none, got %v", resp.Providers)
	}
}

func TestHealthEndpoint_Unhealthy(t *testing.T) {
	cfg := testConfig()
	mgr := failingManager{testManager(cfg, &mockCompletionProvider{})}
	srv := New(cfg, mgr, quietLogger())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" || !strings.Contains(resp.Error, "connection refused") {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	srv, _, _ := testServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/health", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}

func TestChat_HelloRoundTrip(t *testing.T) {
	for _, path := range []string{"/", "/v1/chat"} {
		t.Run(path, func(t *testing.T) {
			_, ts, completion := testServer(t)
			ctx := testContext(t)
			conn := dial(t, ctx, ts, path)

			if err := conn.Write(ctx, websocket.MessageText, []byte("Hello")); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			frames := readTurn(t, ctx, conn)
			want := []string{"Hi", " there", pipeline.EndSentinel}
			if strings.Join(frames, "|") != strings.Join(want, "|") {
				t.Errorf("expected frames %q, got %q", want, frames)
			}

			// No history, so only the generation call is made.
			completion.mu.Lock()
			defer completion.mu.Unlock()
			if len(completion.requests) != 1 {
				t.Fatalf("expected 1 provider call, got %d", len(completion.requests))
			}
			if !strings.Contains(completion.requests[0].SystemPrompt, "Article 1 applies to sales.") {
				t.Error("expected retrieved context in the system prompt")
			}

			_ = conn.Close(websocket.StatusNormalClosure, "")
		})
	}
}

func TestChat_SecondTurnIsRefined(t *testing.T) {
	_, ts, completion := testServer(t)
	ctx := testContext(t)
	conn := dial(t, ctx, ts, "/v1/chat")

	for _, msg := range []string{"What is article 1?", "and the next one?"} {
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		readTurn(t, ctx, conn)
	}

	completion.mu.Lock()
	defer completion.mu.Unlock()
	// generate, refine, generate
	if len(completion.requests) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(completion.requests))
	}
	refine := completion.requests[1]
	if !strings.Contains(refine.SystemPrompt, "What is article 1?") {
		t.Error("expected the prior question in the refiner prompt")
	}
	last := completion.requests[2].Messages
	if len(last) != 3 {
		t.Fatalf("expected 3 history messages in the second generation, got %d", len(last))
	}
	if last[1].Content != "Hi there" {
		t.Errorf("expected assistant turn 'Hi there', got %q", last[1].Content)
	}
}

func TestChat_BinaryFrameClosesSession(t *testing.T) {
	_, ts, _ := testServer(t)
	ctx := testContext(t)
	conn := dial(t, ctx, ts, "/v1/chat")

	if err := conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusUnsupportedData {
		t.Errorf("expected close status %d, got %d (%v)", websocket.StatusUnsupportedData, got, err)
	}
}

func TestChat_PlainRequestIsRejected(t *testing.T) {
	_, ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/v1/chat")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("expected status %d, got %d", http.StatusUpgradeRequired, resp.StatusCode)
	}
}

func TestChat_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := ratelimit.New(client, config.RateLimitConfig{MaxConnections: 1, Window: time.Minute}, quietLogger())

	_, ts, _ := testServer(t, WithRateLimiter(limiter))
	ctx := testContext(t)
	dial(t, ctx, ts, "/v1/chat")

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/chat", nil)
	if err == nil {
		t.Fatal("expected second dial to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 response, got %v", resp)
	}

	// Health is not limited.
	hr, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	hr.Body.Close()
	if hr.StatusCode != http.StatusOK {
		t.Errorf("expected health 200, got %d", hr.StatusCode)
	}
}

func TestShutdown_ClosesSessions(t *testing.T) {
	srv, ts, _ := testServer(t)
	ctx := testContext(t)
	conn := dial(t, ctx, ts, "/v1/chat")

	// Complete a turn so the session is known to be running.
	if err := conn.Write(ctx, websocket.MessageText, []byte("Hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readTurn(t, ctx, conn)
	if n := srv.ActiveSessions(); n != 1 {
		t.Fatalf("expected 1 active session, got %d", n)
	}

	// The close handshake needs a reader on the client side.
	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	err := <-readErr
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Errorf("expected close status %d, got %d (%v)", websocket.StatusGoingAway, got, err)
	}
	if n := srv.ActiveSessions(); n != 0 {
		t.Errorf("expected no active sessions, got %d", n)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	_, ts, _ := testServer(t, WithMetrics(m))
	ctx := testContext(t)

	conn := dial(t, ctx, ts, "/v1/chat")
	if err := conn.Write(ctx, websocket.MessageText, []byte("Hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readTurn(t, ctx, conn)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"ragchat_sessions_total 1", "ragchat_sessions_active 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS.Enabled = true
	cfg.Server.CORS.AllowedOrigins = []string{"https://chat.example.com"}
	srv := New(cfg, testManager(cfg, &mockCompletionProvider{}), quietLogger())

	req := httptest.NewRequest(http.MethodOptions, "/v1/health", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Errorf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allowed origin header, got %q", got)
	}
}

func TestAcceptOptions(t *testing.T) {
	tests := []struct {
		name         string
		cors         config.CORSConfig
		wantNil      bool
		wantInsecure bool
		wantPatterns []string
	}{
		{name: "disabled", cors: config.CORSConfig{AllowedOrigins: []string{"*"}}, wantNil: true},
		{name: "no origins", cors: config.CORSConfig{Enabled: true}, wantNil: true},
		{name: "wildcard", cors: config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}, wantInsecure: true},
		{
			name:         "hosts",
			cors:         config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://a.example.com", "b.example.com:8080"}},
			wantPatterns: []string{"a.example.com", "b.example.com:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Server.CORS = tt.cors
			s := &Server{config: cfg}

			opts := s.acceptOptions()
			if tt.wantNil {
				if opts != nil {
					t.Fatalf("expected nil options, got %+v", opts)
				}
				return
			}
			if opts == nil {
				t.Fatal("expected options")
			}
			if opts.InsecureSkipVerify != tt.wantInsecure {
				t.Errorf("expected InsecureSkipVerify %v", tt.wantInsecure)
			}
			if strings.Join(opts.OriginPatterns, ",") != strings.Join(tt.wantPatterns, ",") {
				t.Errorf("expected patterns %v, got %v", tt.wantPatterns, opts.OriginPatterns)
			}
		})
	}
}
