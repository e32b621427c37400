//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/search"
)

// quietLogger discards all output.
var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockCompletionProvider implements llm.CompletionProvider for testing.
type MockCompletionProvider struct {
	CompleteFunc       func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	CompleteStreamFunc func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error)
	ModelNameVal       string

	mu             sync.Mutex
	completeCalls  []llm.CompletionRequest
	streamRequests []llm.CompletionRequest
}

func (m *MockCompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &llm.CompletionResponse{
		Content:      "refined question",
		FinishReason: "stop",
	}, nil
}

func (m *MockCompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	m.mu.Lock()
	m.streamRequests = append(m.streamRequests, req)
	m.mu.Unlock()

	if m.CompleteStreamFunc != nil {
		return m.CompleteStreamFunc(ctx, req)
	}
	return streamOf(ctx, nil, "This is ", "a streaming response.")
}

func (m *MockCompletionProvider) ModelName() string {
	if m.ModelNameVal != "" {
		return m.ModelNameVal
	}
	return "mock-completion-model"
}

func (m *MockCompletionProvider) CompleteCalls() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest(nil), m.completeCalls...)
}

func (m *MockCompletionProvider) StreamRequests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest(nil), m.streamRequests...)
}

// streamOf emits fragments then finishes with err, the way providers do.
func streamOf(ctx context.Context, err error, fragments ...string) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		for _, f := range fragments {
			select {
			case chunkChan <- llm.StreamChunk{Content: f}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
		if err != nil {
			errChan <- err
			return
		}
		select {
		case chunkChan <- llm.StreamChunk{FinishReason: "stop"}:
		case <-ctx.Done():
			errChan <- ctx.Err()
		}
	}()

	return chunkChan, errChan
}

// MockSearcher implements search.Searcher for testing.
type MockSearcher struct {
	SearchFunc func(ctx context.Context, query string, k int) ([]search.Hit, error)

	mu      sync.Mutex
	queries []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, k int) ([]search.Hit, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, k)
	}
	return []search.Hit{
		{ID: "1", Text: "Passage one.", Score: 0.9},
		{ID: "2", Text: "Passage two.", Score: 0.8},
	}, nil
}

func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// hitsOf returns one hit per text, best first.
func hitsOf(texts ...string) []search.Hit {
	hits := make([]search.Hit, len(texts))
	for i, t := range texts {
		hits[i] = search.Hit{ID: t, Text: t, Score: 1 - float64(i)/10}
	}
	return hits
}

// MockRerankProvider implements llm.RerankProvider for testing.
type MockRerankProvider struct {
	RerankFunc func(ctx context.Context, req llm.RerankRequest) ([]llm.RerankResult, error)

	mu    sync.Mutex
	calls []llm.RerankRequest
}

func (m *MockRerankProvider) Rerank(ctx context.Context, req llm.RerankRequest) ([]llm.RerankResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.RerankFunc != nil {
		return m.RerankFunc(ctx, req)
	}
	// Reverse order by default.
	n := min(req.TopN, len(req.Documents))
	results := make([]llm.RerankResult, 0, n)
	for i := len(req.Documents) - 1; i >= 0 && len(results) < n; i-- {
		results = append(results, llm.RerankResult{Index: i, RelevanceScore: float64(i+1) / 10})
	}
	return results, nil
}

func (m *MockRerankProvider) ModelName() string {
	return "mock-rerank-model"
}

func (m *MockRerankProvider) Calls() []llm.RerankRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.RerankRequest(nil), m.calls...)
}

// recordingSink collects frames and can fail after a number of sends.
type recordingSink struct {
	mu      sync.Mutex
	frames  []string
	failAt  int // 1-based send that fails; 0 never fails
	sendErr error
}

var errSinkClosed = errors.New("sink closed")

func (s *recordingSink) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt > 0 && len(s.frames)+1 >= s.failAt {
		if s.sendErr != nil {
			return s.sendErr
		}
		return errSinkClosed
	}
	s.frames = append(s.frames, text)
	return nil
}

func (s *recordingSink) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}
