//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package bm25

import (
	"context"
	"sort"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// ModelName is reported by the reranker in logs and metrics.
const ModelName = "bm25"

// Reranker implements llm.RerankProvider with BM25 over the candidate
// set. It is stateless and safe for concurrent use.
type Reranker struct {
	tokenizer *Tokenizer
	params    Params
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithParams overrides K1 and B.
func WithParams(p Params) Option {
	return func(r *Reranker) {
		r.params = p
	}
}

// WithTokenizer sets a custom tokenizer.
func WithTokenizer(t *Tokenizer) Option {
	return func(r *Reranker) {
		r.tokenizer = t
	}
}

// NewReranker creates a BM25 reranker with default parameters.
func NewReranker(opts ...Option) *Reranker {
	r := &Reranker{
		tokenizer: NewTokenizer(),
		params:    DefaultParams(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores every document and returns the best req.TopN. Equal
// scores keep their input order, so a query with no usable terms returns
// the input order unchanged.
func (r *Reranker) Rerank(ctx context.Context, req llm.RerankRequest) ([]llm.RerankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Documents) == 0 {
		return nil, nil
	}

	c := newCorpus(r.tokenizer, req.Documents)
	query := r.tokenizer.Frequencies(req.Query)

	results := make([]llm.RerankResult, len(req.Documents))
	for i := range req.Documents {
		results[i] = llm.RerankResult{
			Index:          i,
			RelevanceScore: c.score(r.params, query, i),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if req.TopN > 0 && req.TopN < len(results) {
		results = results[:req.TopN]
	}
	return results, nil
}

// ModelName returns "bm25".
func (r *Reranker) ModelName() string {
	return ModelName
}

var _ llm.RerankProvider = (*Reranker)(nil)
