//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package search

import (
	"context"
	"errors"
	"testing"
)

type mockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.EmbedFunc(ctx, text)
}

func (m *mockEmbedder) Dimensions() int   { return 3 }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }

type mockStore struct {
	QueryFunc func(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

func (m *mockStore) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	return m.QueryFunc(ctx, vector, k)
}

func TestSearch(t *testing.T) {
	var embedded string
	var gotK int
	s := NewEmbeddingSearcher(
		&mockEmbedder{EmbedFunc: func(_ context.Context, text string) ([]float32, error) {
			embedded = text
			return []float32{0.1, 0.2, 0.3}, nil
		}},
		&mockStore{QueryFunc: func(_ context.Context, vector []float32, k int) ([]Hit, error) {
			gotK = k
			if len(vector) != 3 {
				t.Errorf("expected 3-dim vector, got %d", len(vector))
			}
			return []Hit{{ID: "1", Text: "a", Score: 0.9}, {ID: "2", Text: "b", Score: 0.8}}, nil
		}},
	)

	hits, err := s.Search(context.Background(), "seat of arbitration", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if embedded != "seat of arbitration" {
		t.Errorf("unexpected embedded text %q", embedded)
	}
	if gotK != 5 {
		t.Errorf("expected k=5, got %d", gotK)
	}
	if len(hits) != 2 || hits[0].ID != "1" {
		t.Errorf("unexpected hits %+v", hits)
	}
}

func TestSearch_TrimsToK(t *testing.T) {
	s := NewEmbeddingSearcher(
		&mockEmbedder{EmbedFunc: func(context.Context, string) ([]float32, error) {
			return []float32{1}, nil
		}},
		&mockStore{QueryFunc: func(context.Context, []float32, int) ([]Hit, error) {
			return []Hit{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil
		}},
	)

	hits, err := s.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}
}

func TestSearch_Errors(t *testing.T) {
	embedErr := errors.New("embedding down")
	storeErr := errors.New("store down")

	tests := []struct {
		name     string
		query    string
		embedErr error
		storeErr error
		want     error
	}{
		{name: "empty query", query: "  ", want: ErrEmptyQuery},
		{name: "embed failure", query: "q", embedErr: embedErr, want: embedErr},
		{name: "store failure", query: "q", storeErr: storeErr, want: storeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEmbeddingSearcher(
				&mockEmbedder{EmbedFunc: func(context.Context, string) ([]float32, error) {
					return []float32{1}, tt.embedErr
				}},
				&mockStore{QueryFunc: func(context.Context, []float32, int) ([]Hit, error) {
					return nil, tt.storeErr
				}},
			)
			_, err := s.Search(context.Background(), tt.query, 3)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
