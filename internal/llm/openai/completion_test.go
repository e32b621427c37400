//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc, opts ...CompletionOption) *CompletionProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", WithBaseURL(server.URL), WithHeader("X-Title", "pgEdge RAG Chat"))
	return NewCompletionProvider("test-key", append(opts, WithCompletionClient(client))...)
}

func TestCompletionProvider_Complete(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Title") != "pgEdge RAG Chat" {
			t.Errorf("expected X-Title header, got %q", r.Header.Get("X-Title"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream to be false")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Hello!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "Hi there"}},
		Temperature: -1,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Hello!" {
		t.Errorf("expected 'Hello!', got %s", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("expected 'stop', got %s", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestCompletionProvider_Complete_SystemOnly(t *testing.T) {
	var got chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "rewritten"}}]}`))
	}, WithTemperature(0.7))

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Reformulate this.",
		MaxTokens:    200,
		Temperature:  0,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if len(got.Messages) != 1 || got.Messages[0].Role != "system" {
		t.Fatalf("expected a single system message, got %+v", got.Messages)
	}
	if got.MaxTokens != 200 {
		t.Errorf("expected max_tokens 200, got %d", got.MaxTokens)
	}
	if got.Temperature != 0 {
		t.Errorf("expected temperature 0 to be sent, got %f", got.Temperature)
	}
}

func TestCompletionProvider_Complete_HistoryOrder(t *testing.T) {
	var got chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Answer from context.",
		Messages: []llm.Message{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	want := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got.Messages))
	}
	for i, role := range want {
		if got.Messages[i].Role != role {
			t.Errorf("message %d: expected role %s, got %s", i, role, got.Messages[i].Role)
		}
	}
}

func TestCompletionProvider_Complete_Error(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "code": 429}}`))
	})

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.IsRetryable(err) {
		t.Errorf("expected rate limit error to be retryable: %v", err)
	}
	if !strings.Contains(err.Error(), "slow down") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}

func TestCompletionProvider_CompleteStream(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("expected stream to be true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, token := range []string{"Hel", "lo", "!"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", token)
		}
		_, _ = fmt.Fprint(w, ": keep-alive\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})

	var b strings.Builder
	var finish string
	for chunk := range chunks {
		b.WriteString(chunk.Content)
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	if b.String() != "Hello!" {
		t.Errorf("expected 'Hello!', got %q", b.String())
	}
	if finish != "stop" {
		t.Errorf("expected finish reason stop, got %q", finish)
	}
}

func TestCompletionProvider_CompleteStream_MidStreamError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"error\":{\"message\":\"upstream overloaded\"}}\n\n")
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})

	count := 0
	for range chunks {
		count++
	}
	err := <-errs
	if err == nil || !strings.Contains(err.Error(), "upstream overloaded") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 chunk before the error, got %d", count)
	}
}

func TestCompletionProvider_CompleteStream_HTTPError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "auth"}}`))
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{})
	for range chunks {
		t.Error("expected no chunks")
	}

	err := <-errs
	var apiErr *llm.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *llm.Error, got %T: %v", err, err)
	}
	if apiErr.Code != llm.ErrCodeInvalidKey {
		t.Errorf("expected code %s, got %s", llm.ErrCodeInvalidKey, apiErr.Code)
	}
}

func TestCompletionProvider_ModelName(t *testing.T) {
	provider := NewCompletionProvider("test-key")
	if provider.ModelName() != defaultChatModel {
		t.Errorf("expected %s, got %s", defaultChatModel, provider.ModelName())
	}

	provider = NewCompletionProvider("test-key", WithCompletionModel("google/gemini-2.0-flash-001"))
	if provider.ModelName() != "google/gemini-2.0-flash-001" {
		t.Errorf("expected google/gemini-2.0-flash-001, got %s", provider.ModelName())
	}
}
