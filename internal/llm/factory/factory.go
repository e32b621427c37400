//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package factory provides functions to create LLM providers from configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/pgEdge/pgedge-rag-chat/internal/bm25"
	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/anthropic"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/cohere"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/ollama"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/openai"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/voyage"
)

// openRouterTitle is sent as X-Title so requests are attributed in the
// OpenRouter dashboard.
const openRouterTitle = "pgEdge RAG Chat"

// NewEmbeddingProvider creates an embedding provider based on configuration.
func NewEmbeddingProvider(
	cfg config.LLMConfig,
	apiKeys *config.LoadedKeys,
) (llm.EmbeddingProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		if apiKeys.OpenAI == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		client := openai.NewClient(apiKeys.OpenAI, openai.WithBaseURL(cfg.BaseURL))
		return openai.NewEmbeddingProvider(apiKeys.OpenAI,
			openai.WithEmbeddingClient(client),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithDimensions(cfg.Dimensions),
		), nil

	case config.ProviderVoyage:
		if apiKeys.Voyage == "" {
			return nil, fmt.Errorf("Voyage API key not configured")
		}
		client := voyage.NewClient(apiKeys.Voyage, voyage.WithBaseURL(cfg.BaseURL))
		return voyage.NewEmbeddingProvider(apiKeys.Voyage,
			voyage.WithEmbeddingClient(client),
			voyage.WithModel(cfg.Model),
			voyage.WithDimensions(cfg.Dimensions),
		), nil

	case config.ProviderOllama:
		return ollama.NewEmbeddingProvider(
			ollama.WithEmbeddingClient(ollama.NewClient(ollama.WithBaseURL(cfg.BaseURL))),
			ollama.WithEmbeddingModel(cfg.Model),
			ollama.WithDimensions(cfg.Dimensions),
		), nil

	case config.ProviderAnthropic, config.ProviderOpenRouter:
		return nil, fmt.Errorf("%s does not provide an embedding API", cfg.Provider)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewCompletionProvider creates a completion provider based on configuration.
func NewCompletionProvider(
	cfg config.LLMConfig,
	apiKeys *config.LoadedKeys,
) (llm.CompletionProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenRouter:
		if apiKeys.OpenRouter == "" {
			return nil, fmt.Errorf("OpenRouter API key not configured")
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openai.OpenRouterBaseURL
		}
		client := openai.NewClient(apiKeys.OpenRouter,
			openai.WithBaseURL(baseURL),
			openai.WithHeader("X-Title", openRouterTitle),
		)
		return openai.NewCompletionProvider(apiKeys.OpenRouter,
			openai.WithCompletionClient(client),
			openai.WithCompletionModel(cfg.Model),
		), nil

	case config.ProviderOpenAI:
		if apiKeys.OpenAI == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		client := openai.NewClient(apiKeys.OpenAI, openai.WithBaseURL(cfg.BaseURL))
		return openai.NewCompletionProvider(apiKeys.OpenAI,
			openai.WithCompletionClient(client),
			openai.WithCompletionModel(cfg.Model),
		), nil

	case config.ProviderAnthropic:
		if apiKeys.Anthropic == "" {
			return nil, fmt.Errorf("Anthropic API key not configured")
		}
		client := anthropic.NewClient(apiKeys.Anthropic, anthropic.WithBaseURL(cfg.BaseURL))
		return anthropic.NewCompletionProvider(apiKeys.Anthropic,
			anthropic.WithCompletionClient(client),
			anthropic.WithCompletionModel(cfg.Model),
		), nil

	case config.ProviderOllama:
		return ollama.NewCompletionProvider(
			ollama.WithCompletionClient(ollama.NewClient(ollama.WithBaseURL(cfg.BaseURL))),
			ollama.WithCompletionModel(cfg.Model),
		), nil

	case config.ProviderVoyage:
		return nil, fmt.Errorf("Voyage does not provide a completion API")

	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}

// NewRerankProvider creates a rerank provider based on configuration. It
// returns a nil provider without error for "none".
func NewRerankProvider(
	cfg config.RerankConfig,
	apiKeys *config.LoadedKeys,
) (llm.RerankProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderCohere:
		if apiKeys.Cohere == "" {
			return nil, fmt.Errorf("Cohere API key not configured")
		}
		return cohere.NewRerankProvider(apiKeys.Cohere,
			cohere.WithModel(cfg.Model),
			cohere.WithBaseURL(cfg.BaseURL),
		), nil

	case config.ProviderVoyage:
		if apiKeys.Voyage == "" {
			return nil, fmt.Errorf("Voyage API key not configured")
		}
		client := voyage.NewClient(apiKeys.Voyage, voyage.WithBaseURL(cfg.BaseURL))
		return voyage.NewRerankProvider(apiKeys.Voyage,
			voyage.WithRerankClient(client),
			voyage.WithRerankModel(cfg.Model),
		), nil

	case config.ProviderBM25:
		return bm25.NewReranker(), nil

	case config.ProviderNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", cfg.Provider)
	}
}
