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
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbeddingProvider_Embed(t *testing.T) {
	var got embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or incorrect Authorization header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3], "index": 0}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	provider := NewEmbeddingProvider("test-key", WithEmbeddingClient(client))

	embedding, err := provider.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(embedding) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(embedding))
	}
	if got.Input != "hello world" {
		t.Errorf("expected input 'hello world', got %q", got.Input)
	}
	if got.Dimensions != 0 {
		t.Errorf("expected no dimensions parameter, got %d", got.Dimensions)
	}
}

func TestEmbeddingProvider_Embed_Dimensions(t *testing.T) {
	var got embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.5, 0.5], "index": 0}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	provider := NewEmbeddingProvider("test-key", WithEmbeddingClient(client), WithDimensions(256))

	if _, err := provider.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if got.Dimensions != 256 {
		t.Errorf("expected dimensions 256 in request, got %d", got.Dimensions)
	}
}

func TestEmbeddingProvider_Embed_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	provider := NewEmbeddingProvider("test-key", WithEmbeddingClient(client))

	if _, err := provider.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty embedding response")
	}
}

func TestEmbeddingProvider_Defaults(t *testing.T) {
	provider := NewEmbeddingProvider("test-key")
	if provider.Dimensions() != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", provider.Dimensions())
	}
	if provider.ModelName() != defaultEmbeddingModel {
		t.Errorf("expected %s, got %s", defaultEmbeddingModel, provider.ModelName())
	}

	provider = NewEmbeddingProvider("test-key", WithEmbeddingModel(""))
	if provider.ModelName() != defaultEmbeddingModel {
		t.Errorf("empty model should keep default, got %s", provider.ModelName())
	}
}
