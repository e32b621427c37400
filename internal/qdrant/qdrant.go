//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package qdrant provides a vector store backed by the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/search"
)

const (
	defaultTimeout    = 20
	defaultContentKey = "page_content"
)

// Store queries a single Qdrant collection.
type Store struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	collection string
	contentKey string
	vectorName string
}

// Option configures the store.
type Option func(*Store)

// WithAPIKey sets the api-key header.
func WithAPIKey(key string) Option {
	return func(s *Store) {
		s.apiKey = key
	}
}

// WithContentKey sets the payload field that holds passage text.
func WithContentKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.contentKey = key
		}
	}
}

// WithVectorName queries a named vector instead of the default one.
func WithVectorName(name string) Option {
	return func(s *Store) {
		s.vectorName = name
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(seconds int) Option {
	return func(s *Store) {
		s.httpClient.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.httpClient = client
	}
}

// NewStore creates a store for collection at baseURL.
func NewStore(baseURL, collection string, opts ...Option) *Store {
	s := &Store{
		httpClient: &http.Client{
			Timeout: defaultTimeout * time.Second,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		collection: collection,
		contentKey: defaultContentKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// namedVector is the request form for collections with named vectors.
type namedVector struct {
	Name   string    `json:"name"`
	Vector []float32 `json:"vector"`
}

type searchRequest struct {
	Vector      any  `json:"vector"`
	Limit       int  `json:"limit"`
	WithPayload bool `json:"with_payload"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
}

type errorResponse struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

// Query returns the k points nearest to vector, best first. Points
// without text under the content key are skipped.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]search.Hit, error) {
	req := searchRequest{
		Vector:      vector,
		Limit:       k,
		WithPayload: true,
	}
	if s.vectorName != "" {
		req.Vector = namedVector{Name: s.vectorName, Vector: vector}
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.collection))

	var resp searchResponse
	if err := s.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]search.Hit, 0, len(resp.Result))
	for _, p := range resp.Result {
		text, ok := p.Payload[s.contentKey].(string)
		if !ok || text == "" {
			continue
		}
		hits = append(hits, search.Hit{
			ID:    pointID(p.ID),
			Text:  text,
			Score: p.Score,
		})
	}
	return hits, nil
}

// pointID renders a numeric or UUID point id as a string.
func pointID(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}

func (s *Store) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Status.Error != "" {
		return fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, errResp.Status.Error)
	}
	return fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, string(body))
}

var _ search.VectorStore = (*Store)(nil)
