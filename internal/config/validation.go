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
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Accepted provider names per role.
var (
	CompletionProviders  = []string{ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic, ProviderOllama}
	EmbeddingProviders   = []string{ProviderOpenAI, ProviderVoyage, ProviderOllama}
	RerankProviders      = []string{ProviderCohere, ProviderVoyage, ProviderBM25, ProviderNone}
	VectorStoreProviders = []string{VectorStoreQdrant, VectorStorePgVector}
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationErrors) add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateChat()...)
	errs = append(errs, validateLLM("completion_llm", c.CompletionLLM.Provider, c.CompletionLLM.Model, CompletionProviders)...)
	errs = append(errs, validateLLM("embedding_llm", c.EmbeddingLLM.Provider, c.EmbeddingLLM.Model, EmbeddingProviders)...)
	errs = append(errs, c.validateRerank()...)
	errs = append(errs, c.validateVectorStore()...)
	errs = append(errs, c.validateRedis()...)
	errs = append(errs, c.validateNATS()...)
	errs = append(errs, c.validateLog()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.add("server.port", "must be between 1 and 65535")
	}

	if c.Server.MaxMessageBytes < 1 {
		errs.add("server.max_message_bytes", "must be positive")
	}

	if c.Server.ShutdownTimeout < 0 {
		errs.add("server.shutdown_timeout", "must be non-negative")
	}

	if c.Server.TLS.Enabled {
		errs = append(errs, validateFile("server.tls.cert_file", c.Server.TLS.CertFile)...)
		errs = append(errs, validateFile("server.tls.key_file", c.Server.TLS.KeyFile)...)
	}

	return errs
}

func validateFile(field, path string) ValidationErrors {
	var errs ValidationErrors
	if path == "" {
		errs.add(field, "required when TLS is enabled")
	} else if _, err := os.Stat(expandPath(path)); err != nil {
		errs.add(field, fmt.Sprintf("file not found: %s", path))
	}
	return errs
}

// validateChat validates the turn pipeline tunables.
func (c *Config) validateChat() ValidationErrors {
	var errs ValidationErrors
	ch := c.Chat

	if ch.SimilarityK < 1 {
		errs.add("chat.similarity_k", "must be at least 1")
	}
	if ch.RerankTopN < 1 {
		errs.add("chat.rerank_top_n", "must be at least 1")
	}
	if ch.Temperature < 0 || ch.Temperature > 2 {
		errs.add("chat.temperature", "must be between 0 and 2")
	}
	if ch.MaxTokens < 1 {
		errs.add("chat.max_tokens", "must be at least 1")
	}
	if ch.RefinerMaxTokens < 1 {
		errs.add("chat.refiner_max_tokens", "must be at least 1")
	}

	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"refine", ch.Timeouts.Refine},
		{"search", ch.Timeouts.Search},
		{"rerank", ch.Timeouts.Rerank},
		{"generate", ch.Timeouts.Generate},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs.add("chat.timeouts."+t.name, "must be positive")
		}
	}

	return errs
}

// validateLLM validates a provider/model pair.
func validateLLM(prefix, provider, model string, validProviders []string) ValidationErrors {
	var errs ValidationErrors

	if provider == "" {
		errs.add(prefix+".provider", "required")
	} else if !slices.Contains(validProviders, strings.ToLower(provider)) {
		errs.add(prefix+".provider", fmt.Sprintf("must be one of: %s", strings.Join(validProviders, ", ")))
	}

	if model == "" {
		errs.add(prefix+".model", "required")
	}

	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	provider := strings.ToLower(c.Rerank.Provider)
	switch provider {
	case ProviderBM25, ProviderNone:
		// Local or disabled; no model needed.
		return nil
	}
	return validateLLM("rerank", c.Rerank.Provider, c.Rerank.Model, RerankProviders)
}

// validateVectorStore validates the selected similarity search backend.
func (c *Config) validateVectorStore() ValidationErrors {
	var errs ValidationErrors
	vs := c.VectorStore

	switch strings.ToLower(vs.Provider) {
	case VectorStoreQdrant:
		if vs.Qdrant.URL == "" {
			errs.add("vector_store.qdrant.url", "required")
		}
		if vs.Collection == "" {
			errs.add("vector_store.collection", "required")
		}
	case VectorStorePgVector:
		errs = append(errs, validateDatabase("vector_store.database", vs.Database)...)
		errs = append(errs, validateTable("vector_store.table", vs.Table)...)
	case "":
		errs.add("vector_store.provider", "required")
	default:
		errs.add("vector_store.provider", fmt.Sprintf("must be one of: %s", strings.Join(VectorStoreProviders, ", ")))
	}

	return errs
}

// validateDatabase validates database configuration.
func validateDatabase(prefix string, db DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs.add(prefix+".host", "required")
	}
	if db.Database == "" {
		errs.add(prefix+".database", "required")
	}
	if db.Port < 1 || db.Port > 65535 {
		errs.add(prefix+".port", "must be between 1 and 65535")
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if db.SSLMode != "" && !slices.Contains(validSSLModes, db.SSLMode) {
		errs.add(prefix+".ssl_mode", "must be one of: "+strings.Join(validSSLModes, ", "))
	}

	return errs
}

// validateTable validates a table source configuration.
func validateTable(prefix string, ts TableSource) ValidationErrors {
	var errs ValidationErrors

	if ts.Table == "" {
		errs.add(prefix+".table", "required")
	}
	if ts.TextColumn == "" {
		errs.add(prefix+".text_column", "required")
	}
	if ts.VectorColumn == "" {
		errs.add(prefix+".vector_column", "required")
	}

	return errs
}

func (c *Config) validateRedis() ValidationErrors {
	var errs ValidationErrors
	if !c.Redis.Enabled {
		return errs
	}

	if c.Redis.Addr == "" {
		errs.add("redis.addr", "required when redis is enabled")
	}
	if c.RateLimit.MaxConnections < 1 {
		errs.add("rate_limit.max_connections", "must be at least 1")
	}
	if c.RateLimit.Window <= 0 {
		errs.add("rate_limit.window", "must be positive")
	}
	return errs
}

func (c *Config) validateNATS() ValidationErrors {
	var errs ValidationErrors
	if !c.NATS.Enabled {
		return errs
	}

	if c.NATS.URL == "" {
		errs.add("nats.url", "required when nats is enabled")
	}
	if c.NATS.Stream == "" {
		errs.add("nats.stream", "required when nats is enabled")
	}
	if c.NATS.Subject == "" {
		errs.add("nats.subject", "required when nats is enabled")
	}
	return errs
}

func (c *Config) validateLog() ValidationErrors {
	var errs ValidationErrors

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs.add("log.level", "must be one of: debug, info, warn, error")
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Log.Format)) {
		errs.add("log.format", "must be one of: text, json")
	}
	return errs
}
