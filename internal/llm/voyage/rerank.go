//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package voyage

import (
	"context"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// RerankProvider implements llm.RerankProvider with the Voyage rerank API.
type RerankProvider struct {
	client *Client
	model  string
}

// NewRerankProvider creates a new Voyage rerank provider.
func NewRerankProvider(apiKey string, opts ...RerankOption) *RerankProvider {
	p := &RerankProvider{
		client: NewClient(apiKey),
		model:  defaultRerankModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RerankOption configures the rerank provider.
type RerankOption func(*RerankProvider)

// WithRerankModel sets the rerank model.
func WithRerankModel(model string) RerankOption {
	return func(p *RerankProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithRerankClient sets a custom client.
func WithRerankClient(client *Client) RerankOption {
	return func(p *RerankProvider) {
		p.client = client
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// Rerank orders req.Documents by relevance to req.Query.
func (p *RerankProvider) Rerank(ctx context.Context, req llm.RerankRequest) ([]llm.RerankResult, error) {
	if len(req.Documents) == 0 {
		return nil, nil
	}

	var resp rerankResponse
	err := p.client.post(ctx, "/rerank", rerankRequest{
		Query:     req.Query,
		Documents: req.Documents,
		Model:     p.model,
		TopK:      req.TopN,
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]llm.RerankResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		results = append(results, llm.RerankResult{
			Index:          d.Index,
			RelevanceScore: d.RelevanceScore,
		})
	}
	return results, nil
}

// ModelName returns the model name.
func (p *RerankProvider) ModelName() string {
	return p.model
}

var _ llm.RerankProvider = (*RerankProvider)(nil)
