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
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/database"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/factory"
	"github.com/pgEdge/pgedge-rag-chat/internal/qdrant"
	"github.com/pgEdge/pgedge-rag-chat/internal/search"
)

// Manager builds the provider clients once at startup and shares them,
// through one Orchestrator, with every session.
type Manager struct {
	mu           sync.Mutex
	config       *config.Config
	orchestrator *Orchestrator
	providers    Providers
	pinger       pinger
	closers      []func()
	logger       *slog.Logger
}

// ManagerConfig contains configuration for creating a Manager.
type ManagerConfig struct {
	Config    *config.Config
	Logger    *slog.Logger
	Observers []TurnObserver
}

// Providers are the collaborators of the turn pipeline. Reranker may be
// nil.
type Providers struct {
	Completion llm.CompletionProvider
	Searcher   search.Searcher
	Reranker   llm.RerankProvider
}

// pinger is implemented by vector stores that hold a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewManager creates every provider named by the configuration.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Config

	// Load API keys from config file paths, environment variables, or defaults
	keyLoader := config.NewAPIKeyLoader(c.APIKeys)
	apiKeys, err := keyLoader.LoadRequiredKeys(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}

	completionProv, err := factory.NewCompletionProvider(c.CompletionLLM, apiKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion provider: %w", err)
	}

	embeddingProv, err := factory.NewEmbeddingProvider(c.EmbeddingLLM, apiKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	rerankProv, err := factory.NewRerankProvider(c.Rerank, apiKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank provider: %w", err)
	}

	store, closer, err := newVectorStore(ctx, c.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	m := NewManagerWithProviders(cfg, Providers{
		Completion: completionProv,
		Searcher:   search.NewEmbeddingSearcher(embeddingProv, store),
		Reranker:   rerankProv,
	})
	if p, ok := store.(pinger); ok {
		m.pinger = p
	}
	if closer != nil {
		m.closers = append(m.closers, closer)
	}

	rerankModel := config.ProviderNone
	if rerankProv != nil {
		rerankModel = rerankProv.ModelName()
	}
	logger.Info("pipeline created",
		"completion_provider", c.CompletionLLM.Provider,
		"completion_model", completionProv.ModelName(),
		"embedding_provider", c.EmbeddingLLM.Provider,
		"embedding_model", embeddingProv.ModelName(),
		"rerank_provider", c.Rerank.Provider,
		"rerank_model", rerankModel,
		"vector_store", c.VectorStore.Provider,
	)

	return m, nil
}

// newVectorStore opens the configured similarity search backend.
func newVectorStore(ctx context.Context, vs config.VectorStoreConfig) (search.VectorStore, func(), error) {
	switch strings.ToLower(vs.Provider) {
	case config.VectorStoreQdrant:
		return qdrant.NewStore(vs.Qdrant.URL, vs.Collection,
			qdrant.WithAPIKey(vs.Qdrant.APIKey),
			qdrant.WithContentKey(vs.Qdrant.ContentKey),
			qdrant.WithVectorName(vs.Qdrant.VectorName),
		), nil, nil

	case config.VectorStorePgVector:
		pool, err := database.NewPool(ctx, vs.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store := database.NewStore(pool, vs.Table)
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", vs.Provider)
	}
}

// NewManagerWithProviders creates a Manager around existing providers.
func NewManagerWithProviders(cfg ManagerConfig, p Providers) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Config
	if c == nil {
		c = config.DefaultConfig()
	}
	chat := c.Chat

	orchestrator := NewOrchestrator(OrchestratorConfig{
		Refiner: NewRefiner(RefinerConfig{
			Provider:    p.Completion,
			MaxTokens:   chat.RefinerMaxTokens,
			Temperature: chat.Temperature,
			Timeout:     chat.Timeouts.Refine,
			Logger:      logger.With("component", "refiner"),
		}),
		Retriever: NewCoordinator(CoordinatorConfig{
			Searcher:      p.Searcher,
			Reranker:      p.Reranker,
			K:             chat.SimilarityK,
			TopN:          chat.RerankTopN,
			SearchTimeout: chat.Timeouts.Search,
			RerankTimeout: chat.Timeouts.Rerank,
			Logger:        logger.With("component", "retriever"),
		}),
		Generator: NewGenerator(GeneratorConfig{
			Provider:    p.Completion,
			MaxTokens:   chat.MaxTokens,
			Temperature: chat.Temperature,
			Timeout:     chat.Timeouts.Generate,
			Logger:      logger.With("component", "generator"),
		}),
		Observers: cfg.Observers,
		Logger:    logger.With("component", "pipeline"),
	})

	return &Manager{
		config:       c,
		orchestrator: orchestrator,
		providers:    p,
		logger:       logger,
	}
}

// Orchestrator returns the shared turn pipeline.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// Describe returns the provider and model names in use.
func (m *Manager) Describe() map[string]string {
	info := map[string]string{
		"vector_store": m.config.VectorStore.Provider,
		"rerank":       config.ProviderNone,
	}
	if m.providers.Completion != nil {
		info["completion"] = m.providers.Completion.ModelName()
	}
	if m.providers.Reranker != nil {
		info["rerank"] = m.providers.Reranker.ModelName()
	}
	return info
}

// Check verifies connectivity of stateful backends.
func (m *Manager) Check(ctx context.Context) error {
	if m.pinger == nil {
		return nil
	}
	if err := m.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("vector store unavailable: %w", err)
	}
	return nil
}

// Close shuts down the manager and releases resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.closers {
		c()
	}
	m.closers = nil

	return nil
}
