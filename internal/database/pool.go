//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package database provides a PostgreSQL vector store using pgvector.
package database

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
)

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connString(cfg, os.Getenv))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// connString builds a keyword/value connection string. The username
// falls back to PGUSER then USER.
func connString(cfg config.DatabaseConfig, getenv func(string) string) string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteValue(value))
		}
	}

	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", fmt.Sprint(cfg.Port))
	}
	add("dbname", cfg.Database)

	username := cfg.Username
	if username == "" {
		username = getenv("PGUSER")
	}
	if username == "" {
		username = getenv("USER")
	}
	add("user", username)
	add("password", cfg.Password)
	add("sslmode", cfg.SSLMode)
	add("sslcert", cfg.SSLCert)
	add("sslkey", cfg.SSLKey)
	add("sslrootcert", cfg.SSLRootCA)

	return strings.Join(parts, " ")
}

// quoteValue single-quotes values containing spaces, quotes or
// backslashes.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
