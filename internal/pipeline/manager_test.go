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
	"path/filepath"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
)

// localConfig needs no API keys and opens no connections.
func localConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.CompletionLLM = config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.2"}
	cfg.EmbeddingLLM = config.LLMConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text"}
	cfg.Rerank = config.RerankConfig{Provider: config.ProviderBM25}
	cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
	return cfg
}

func TestNewManager_Local(t *testing.T) {
	m, err := NewManager(context.Background(), ManagerConfig{
		Config: localConfig(),
		Logger: quietLogger,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	if m.Orchestrator() == nil {
		t.Fatal("expected orchestrator")
	}

	info := m.Describe()
	if info["completion"] != "llama3.2" {
		t.Errorf("unexpected completion model %q", info["completion"])
	}
	if info["rerank"] != "bm25" {
		t.Errorf("unexpected rerank model %q", info["rerank"])
	}
	if info["vector_store"] != "qdrant" {
		t.Errorf("unexpected vector store %q", info["vector_store"])
	}
	if err := m.Check(context.Background()); err != nil {
		t.Errorf("qdrant store has no connection to check: %v", err)
	}
}

func TestNewManager_MissingKey(t *testing.T) {
	cfg := localConfig()
	cfg.CompletionLLM = config.LLMConfig{Provider: config.ProviderOpenRouter, Model: "google/gemini-2.0-flash-001"}
	cfg.APIKeys.OpenRouter = filepath.Join(t.TempDir(), "missing-key")

	if _, err := NewManager(context.Background(), ManagerConfig{Config: cfg, Logger: quietLogger}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewManager_RerankNone(t *testing.T) {
	cfg := localConfig()
	cfg.Rerank = config.RerankConfig{Provider: config.ProviderNone}

	m, err := NewManager(context.Background(), ManagerConfig{Config: cfg, Logger: quietLogger})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Describe()["rerank"] != "none" {
		t.Errorf("expected rerank none, got %q", m.Describe()["rerank"])
	}
	if m.Orchestrator().retriever.reranker != nil {
		t.Error("expected no reranker")
	}
}

func TestNewManagerWithProviders_UsesChatConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chat.SimilarityK = 4
	cfg.Chat.RerankTopN = 2
	cfg.Chat.Temperature = 0.3
	cfg.Chat.MaxTokens = 512
	cfg.Chat.RefinerMaxTokens = 64
	cfg.Chat.Timeouts.Generate = 5 * time.Second

	m := NewManagerWithProviders(ManagerConfig{Config: cfg, Logger: quietLogger}, Providers{
		Completion: &MockCompletionProvider{},
		Searcher:   &MockSearcher{},
		Reranker:   &MockRerankProvider{},
	})

	o := m.Orchestrator()
	if o.retriever.k != 4 || o.retriever.topN != 2 {
		t.Errorf("unexpected retrieval bounds k=%d topN=%d", o.retriever.k, o.retriever.topN)
	}
	if o.refiner.maxTokens != 64 || o.refiner.temperature != 0.3 {
		t.Errorf("unexpected refiner settings %d/%f", o.refiner.maxTokens, o.refiner.temperature)
	}
	if o.generator.maxTokens != 512 || o.generator.timeout != 5*time.Second {
		t.Errorf("unexpected generator settings %d/%s", o.generator.maxTokens, o.generator.timeout)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewManagerWithProviders_Defaults(t *testing.T) {
	m := NewManagerWithProviders(ManagerConfig{}, Providers{
		Completion: &MockCompletionProvider{},
		Searcher:   &MockSearcher{},
	})

	o := m.Orchestrator()
	if o.retriever.k != DefaultSimilarityK || o.retriever.topN != DefaultRerankTopN {
		t.Errorf("expected default bounds, got k=%d topN=%d", o.retriever.k, o.retriever.topN)
	}
	if o.generator.temperature != DefaultTemperature {
		t.Errorf("expected default temperature, got %f", o.generator.temperature)
	}
}
