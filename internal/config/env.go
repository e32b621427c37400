//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"strconv"
	"strings"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envBinder applies environment overrides and collects parse failures.
type envBinder struct {
	lookup LookupFunc
	errs   ValidationErrors
}

// get returns the first non-empty value among names.
func (b *envBinder) get(names ...string) (string, string, bool) {
	for _, name := range names {
		if v, ok := b.lookup(name); ok && strings.TrimSpace(v) != "" {
			return name, strings.TrimSpace(v), true
		}
	}
	return "", "", false
}

func (b *envBinder) stringVar(dst *string, names ...string) {
	if _, v, ok := b.get(names...); ok {
		*dst = v
	}
}

func (b *envBinder) intVar(dst *int, names ...string) {
	name, v, ok := b.get(names...)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		b.errs = append(b.errs, ValidationError{Field: name, Message: "must be an integer"})
		return
	}
	*dst = n
}

func (b *envBinder) int64Var(dst *int64, names ...string) {
	name, v, ok := b.get(names...)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		b.errs = append(b.errs, ValidationError{Field: name, Message: "must be an integer"})
		return
	}
	*dst = n
}

func (b *envBinder) float64Var(dst *float64, names ...string) {
	name, v, ok := b.get(names...)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		b.errs = append(b.errs, ValidationError{Field: name, Message: "must be a number"})
		return
	}
	*dst = f
}

func (b *envBinder) boolVar(dst *bool, names ...string) {
	name, v, ok := b.get(names...)
	if !ok {
		return
	}
	t, err := strconv.ParseBool(v)
	if err != nil {
		b.errs = append(b.errs, ValidationError{Field: name, Message: "must be true or false"})
		return
	}
	*dst = t
}

// durationVar accepts Go duration syntax or a bare number of seconds.
func (b *envBinder) durationVar(dst *time.Duration, names ...string) {
	name, v, ok := b.get(names...)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		b.errs = append(b.errs, ValidationError{Field: name, Message: "must be a duration such as 30s"})
		return
	}
	*dst = d
}

func (b *envBinder) listVar(dst *[]string, names ...string) {
	_, v, ok := b.get(names...)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// applyEnv overlays environment variables on cfg. Where two names are
// listed the first is the historical name and wins over the RAG_ alias.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	b := &envBinder{lookup: lookup}

	b.stringVar(&cfg.Server.ListenAddress, "RAG_LISTEN_ADDRESS")
	b.intVar(&cfg.Server.Port, "RAG_PORT")
	b.int64Var(&cfg.Server.MaxMessageBytes, "RAG_MAX_MESSAGE_BYTES")
	b.durationVar(&cfg.Server.ShutdownTimeout, "RAG_SHUTDOWN_TIMEOUT")
	b.boolVar(&cfg.Server.TLS.Enabled, "RAG_TLS_ENABLED")
	b.stringVar(&cfg.Server.TLS.CertFile, "RAG_TLS_CERT_FILE")
	b.stringVar(&cfg.Server.TLS.KeyFile, "RAG_TLS_KEY_FILE")
	b.boolVar(&cfg.Server.CORS.Enabled, "RAG_CORS_ENABLED")
	b.listVar(&cfg.Server.CORS.AllowedOrigins, "RAG_CORS_ALLOWED_ORIGINS")

	b.intVar(&cfg.Chat.SimilarityK, "SIMILARITY_SEARCH_K", "RAG_SIMILARITY_K")
	b.intVar(&cfg.Chat.RerankTopN, "RERANK_TOP_N", "RAG_RERANK_TOP_N")
	b.float64Var(&cfg.Chat.Temperature, "CHAT_TEMPERATURE", "RAG_CHAT_TEMPERATURE")
	b.intVar(&cfg.Chat.MaxTokens, "CHAT_MAX_TOKENS", "RAG_CHAT_MAX_TOKENS")
	b.intVar(&cfg.Chat.RefinerMaxTokens, "REFINER_MAX_TOKENS", "RAG_REFINER_MAX_TOKENS")
	b.durationVar(&cfg.Chat.Timeouts.Refine, "RAG_REFINE_TIMEOUT")
	b.durationVar(&cfg.Chat.Timeouts.Search, "RAG_SEARCH_TIMEOUT")
	b.durationVar(&cfg.Chat.Timeouts.Rerank, "RAG_RERANK_TIMEOUT")
	b.durationVar(&cfg.Chat.Timeouts.Generate, "RAG_GENERATE_TIMEOUT")

	b.stringVar(&cfg.CompletionLLM.Provider, "RAG_COMPLETION_PROVIDER")
	b.stringVar(&cfg.CompletionLLM.Model, "CHAT_MODEL", "RAG_COMPLETION_MODEL")
	b.stringVar(&cfg.CompletionLLM.BaseURL, "RAG_COMPLETION_BASE_URL")

	b.stringVar(&cfg.EmbeddingLLM.Provider, "RAG_EMBEDDING_PROVIDER")
	b.stringVar(&cfg.EmbeddingLLM.Model, "EMBEDDING_MODEL", "RAG_EMBEDDING_MODEL")
	b.stringVar(&cfg.EmbeddingLLM.BaseURL, "RAG_EMBEDDING_BASE_URL")
	b.intVar(&cfg.EmbeddingLLM.Dimensions, "RAG_EMBEDDING_DIMENSIONS")

	b.stringVar(&cfg.Rerank.Provider, "RAG_RERANK_PROVIDER")
	b.stringVar(&cfg.Rerank.Model, "RERANK_MODEL", "RAG_RERANK_MODEL")
	b.stringVar(&cfg.Rerank.BaseURL, "RAG_RERANK_BASE_URL")

	b.stringVar(&cfg.VectorStore.Provider, "RAG_VECTOR_STORE")
	b.stringVar(&cfg.VectorStore.Collection, "QDRANT_COLLECTION_NAME", "RAG_COLLECTION")
	b.stringVar(&cfg.VectorStore.Qdrant.URL, "QDRANT_URL")
	b.stringVar(&cfg.VectorStore.Qdrant.APIKey, "QDRANT_API_KEY")
	b.stringVar(&cfg.VectorStore.Qdrant.ContentKey, "RAG_QDRANT_CONTENT_KEY")
	b.stringVar(&cfg.VectorStore.Qdrant.VectorName, "RAG_QDRANT_VECTOR_NAME")
	b.stringVar(&cfg.VectorStore.Database.Host, "PGHOST", "RAG_DB_HOST")
	b.intVar(&cfg.VectorStore.Database.Port, "PGPORT", "RAG_DB_PORT")
	b.stringVar(&cfg.VectorStore.Database.Database, "PGDATABASE", "RAG_DB_NAME")
	b.stringVar(&cfg.VectorStore.Database.Username, "PGUSER", "RAG_DB_USER")
	b.stringVar(&cfg.VectorStore.Database.Password, "PGPASSWORD", "RAG_DB_PASSWORD")
	b.stringVar(&cfg.VectorStore.Database.SSLMode, "PGSSLMODE", "RAG_DB_SSL_MODE")
	b.stringVar(&cfg.VectorStore.Table.Table, "RAG_DB_TABLE")

	b.boolVar(&cfg.Redis.Enabled, "RAG_REDIS_ENABLED")
	b.stringVar(&cfg.Redis.Addr, "RAG_REDIS_ADDR")
	b.stringVar(&cfg.Redis.Password, "RAG_REDIS_PASSWORD")
	b.intVar(&cfg.Redis.DB, "RAG_REDIS_DB")
	b.intVar(&cfg.RateLimit.MaxConnections, "RAG_RATE_LIMIT_MAX_CONNECTIONS")
	b.durationVar(&cfg.RateLimit.Window, "RAG_RATE_LIMIT_WINDOW")

	b.boolVar(&cfg.NATS.Enabled, "RAG_NATS_ENABLED")
	b.stringVar(&cfg.NATS.URL, "RAG_NATS_URL")
	b.stringVar(&cfg.NATS.Stream, "RAG_NATS_STREAM")
	b.stringVar(&cfg.NATS.Subject, "RAG_NATS_SUBJECT")

	b.stringVar(&cfg.Log.Level, "RAG_LOG_LEVEL")
	b.stringVar(&cfg.Log.Format, "RAG_LOG_FORMAT")

	if len(b.errs) > 0 {
		return b.errs
	}
	return nil
}
