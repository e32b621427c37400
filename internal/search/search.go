//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package search provides the similarity search collaborator of the turn
// pipeline: a query is embedded and matched against a vector store.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// Hit is one passage returned by a similarity search, best first.
type Hit struct {
	ID    string
	Text  string
	Score float64
}

// Searcher returns at most k passages similar to query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// VectorStore runs a nearest-neighbour query for an embedding.
type VectorStore interface {
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// ErrEmptyQuery is returned when the query is blank.
var ErrEmptyQuery = errors.New("search query is empty")

// EmbeddingSearcher embeds the query text and queries a VectorStore.
type EmbeddingSearcher struct {
	embedder llm.EmbeddingProvider
	store    VectorStore
}

// NewEmbeddingSearcher creates a Searcher from an embedding provider and a
// vector store.
func NewEmbeddingSearcher(embedder llm.EmbeddingProvider, store VectorStore) *EmbeddingSearcher {
	return &EmbeddingSearcher{embedder: embedder, store: store}
}

// Search implements Searcher.
func (s *EmbeddingSearcher) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.store.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	// Stores honour the limit, but a misbehaving one must not widen it.
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

var _ Searcher = (*EmbeddingSearcher)(nil)
