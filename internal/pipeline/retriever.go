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
	"log/slog"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/search"
)

// Default retrieval settings.
const (
	DefaultSimilarityK   = 10
	DefaultRerankTopN    = 6
	DefaultSearchTimeout = 20 * time.Second
	DefaultRerankTimeout = 20 * time.Second
)

var errNoRerankResults = errors.New("reranker returned no usable results")

// Coordinator runs similarity search followed by reranking.
type Coordinator struct {
	searcher      search.Searcher
	reranker      llm.RerankProvider
	k             int
	topN          int
	searchTimeout time.Duration
	rerankTimeout time.Duration
	logger        *slog.Logger
}

// CoordinatorConfig contains the configuration for creating a Coordinator.
// A nil Reranker keeps the similarity order.
type CoordinatorConfig struct {
	Searcher      search.Searcher
	Reranker      llm.RerankProvider
	K             int
	TopN          int
	SearchTimeout time.Duration
	RerankTimeout time.Duration
	Logger        *slog.Logger
}

// NewCoordinator creates a retrieval coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		searcher:      cfg.Searcher,
		reranker:      cfg.Reranker,
		k:             cfg.K,
		topN:          cfg.TopN,
		searchTimeout: cfg.SearchTimeout,
		rerankTimeout: cfg.RerankTimeout,
		logger:        cfg.Logger,
	}
	if c.k <= 0 {
		c.k = DefaultSimilarityK
	}
	if c.topN <= 0 {
		c.topN = DefaultRerankTopN
	}
	if c.searchTimeout <= 0 {
		c.searchTimeout = DefaultSearchTimeout
	}
	if c.rerankTimeout <= 0 {
		c.rerankTimeout = DefaultRerankTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// RetrieveAndRank searches with the configured k and reranks to the
// configured top N. It never fails; see SimilaritySearch and Rerank.
func (c *Coordinator) RetrieveAndRank(ctx context.Context, query string) (RankedContext, []StageResult) {
	passages, searchRes := c.SimilaritySearch(ctx, query, c.k)
	ranked, rerankRes := c.Rerank(ctx, query, passages, c.topN)
	return ranked, []StageResult{searchRes, rerankRes}
}

// SimilaritySearch returns at most k passages in similarity order. A
// search failure returns no passages.
func (c *Coordinator) SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, StageResult) {
	start := time.Now()
	res := StageResult{Stage: StageSearch}

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	hits, err := c.searcher.Search(ctx, query, k)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Outcome = OutcomeDegraded
		res.Err = err
		c.logger.Warn("similarity search failed, continuing without context",
			"query", preview(query),
			"elapsed", res.Elapsed,
			"error", err,
		)
		return nil, res
	}

	if len(hits) > k {
		hits = hits[:k]
	}

	passages := make([]Passage, len(hits))
	for i, h := range hits {
		passages[i] = Passage{
			ID:              h.ID,
			Text:            h.Text,
			OriginalRank:    i,
			SimilarityScore: h.Score,
		}
	}

	res.Outcome = OutcomeOK
	c.logger.Debug("similarity search completed",
		"query", preview(query),
		"passages", len(passages),
		"elapsed", res.Elapsed,
	)
	return passages, res
}

// Rerank orders passages by the reranker and keeps at most topN. Empty
// input returns immediately without calling the reranker. A reranker
// failure returns the first topN passages in their original order.
func (c *Coordinator) Rerank(ctx context.Context, query string, passages []Passage, topN int) (RankedContext, StageResult) {
	start := time.Now()
	res := StageResult{Stage: StageRerank}

	if len(passages) == 0 {
		res.Outcome = OutcomeSkipped
		return RankedContext{}, res
	}

	n := min(topN, len(passages))
	fallback := RankedContext(passages[:n:n])

	if c.reranker == nil {
		res.Outcome = OutcomeSkipped
		return fallback, res
	}

	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = p.Text
	}

	ctx, cancel := context.WithTimeout(ctx, c.rerankTimeout)
	defer cancel()

	results, err := c.reranker.Rerank(ctx, llm.RerankRequest{
		Query:     query,
		Documents: docs,
		TopN:      n,
	})
	res.Elapsed = time.Since(start)

	var ranked RankedContext
	if err == nil {
		ranked = mapRerankResults(passages, results, n)
		if len(ranked) == 0 {
			err = errNoRerankResults
		}
	}
	if err != nil {
		res.Outcome = OutcomeDegraded
		res.Err = err
		c.logger.Warn("rerank failed, using similarity order",
			"query", preview(query),
			"passages", len(passages),
			"elapsed", res.Elapsed,
			"error", err,
		)
		return fallback, res
	}

	res.Outcome = OutcomeOK
	c.logger.Debug("rerank completed",
		"query", preview(query),
		"passages", len(passages),
		"ranked", len(ranked),
		"elapsed", res.Elapsed,
	)
	return ranked, res
}

// mapRerankResults resolves result indices against passages in the
// reranker's order, dropping out-of-range and repeated indices.
func mapRerankResults(passages []Passage, results []llm.RerankResult, n int) RankedContext {
	seen := make(map[int]bool, len(results))
	ranked := make(RankedContext, 0, n)

	for _, r := range results {
		if r.Index < 0 || r.Index >= len(passages) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true

		p := passages[r.Index]
		score := r.RelevanceScore
		p.RelevanceScore = &score
		ranked = append(ranked, p)

		if len(ranked) == n {
			break
		}
	}
	return ranked
}
