//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cohere provides a rerank provider for the Cohere v2 rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

const (
	defaultBaseURL = "https://api.cohere.com/v2"
	defaultModel   = "rerank-v3.5"
	defaultTimeout = 30
)

// RerankProvider implements the llm.RerankProvider interface.
type RerankProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewRerankProvider creates a new Cohere rerank provider.
func NewRerankProvider(apiKey string, opts ...Option) *RerankProvider {
	p := &RerankProvider{
		httpClient: &http.Client{
			Timeout: defaultTimeout * time.Second,
		},
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   defaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option configures the rerank provider.
type Option func(*RerankProvider)

// WithModel sets the rerank model.
func WithModel(model string) Option {
	return func(p *RerankProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *RerankProvider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(seconds int) Option {
	return func(p *RerankProvider) {
		p.httpClient.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *RerankProvider) {
		p.httpClient = client
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// ErrorResponse represents a Cohere API error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Rerank orders req.Documents by relevance to req.Query. Results come
// back sorted by descending relevance score.
func (p *RerankProvider) Rerank(ctx context.Context, req llm.RerankRequest) ([]llm.RerankResult, error) {
	if len(req.Documents) == 0 {
		return nil, nil
	}

	jsonData, err := json.Marshal(rerankRequest{
		Model:     p.model,
		Query:     req.Query,
		Documents: req.Documents,
		TopN:      req.TopN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
			return nil, llm.NewAPIError(resp.StatusCode, string(body))
		}
		return nil, llm.NewAPIError(resp.StatusCode, errResp.Message)
	}

	var rr rerankResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]llm.RerankResult, 0, len(rr.Results))
	for _, r := range rr.Results {
		results = append(results, llm.RerankResult{
			Index:          r.Index,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return results, nil
}

// ModelName returns the model name.
func (p *RerankProvider) ModelName() string {
	return p.model
}

var _ llm.RerankProvider = (*RerankProvider)(nil)
