//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/search"
)

// Store runs cosine similarity queries against one table.
type Store struct {
	pool  *pgxpool.Pool
	query string
}

// NewStore creates a vector store over table. The pool is owned by the
// store and released by Close.
func NewStore(pool *pgxpool.Pool, table config.TableSource) *Store {
	return &Store{
		pool:  pool,
		query: buildSearchQuery(table),
	}
}

// tableIdentifier splits "schema.table" into an identifier.
func tableIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// buildSearchQuery renders the similarity query for a table. The <=>
// operator is cosine distance, so similarity is 1 minus it. Without an
// ID column the row's ctid identifies it.
func buildSearchQuery(ts config.TableSource) string {
	idExpr := "ctid::text"
	if ts.IDColumn != "" {
		idExpr = pgx.Identifier{ts.IDColumn}.Sanitize() + "::text"
	}
	text := pgx.Identifier{ts.TextColumn}.Sanitize()
	vector := pgx.Identifier{ts.VectorColumn}.Sanitize()

	return fmt.Sprintf(`
		SELECT
			%s AS id,
			%s AS content,
			1 - (%s <=> $1) AS score
		FROM %s
		WHERE %s IS NOT NULL AND %s IS NOT NULL
		ORDER BY %s <=> $1
		LIMIT $2`,
		idExpr,
		text,
		vector,
		tableIdentifier(ts.Table).Sanitize(),
		text, vector,
		vector,
	)
}

// Query returns the k rows nearest to vector, best first.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]search.Hit, error) {
	rows, err := s.pool.Query(ctx, s.query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []search.Hit
	for rows.Next() {
		var h search.Hit
		if err := rows.Scan(&h.ID, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return hits, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ search.VectorStore = (*Store)(nil)
