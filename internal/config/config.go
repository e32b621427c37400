//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// pgEdge RAG Chat server.
package config

import "time"

// Provider names accepted in configuration.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
	ProviderVoyage     = "voyage"
	ProviderCohere     = "cohere"
	ProviderBM25       = "bm25"
	ProviderNone       = "none"

	VectorStoreQdrant   = "qdrant"
	VectorStorePgVector = "pgvector"
)

// Config is the root configuration structure for the server.
type Config struct {
	Server        ServerConfig      `yaml:"server"`
	APIKeys       APIKeysConfig     `yaml:"api_keys"`
	Chat          ChatConfig        `yaml:"chat"`
	CompletionLLM LLMConfig         `yaml:"completion_llm"`
	EmbeddingLLM  LLMConfig         `yaml:"embedding_llm"`
	Rerank        RerankConfig      `yaml:"rerank"`
	VectorStore   VectorStoreConfig `yaml:"vector_store"`
	Redis         RedisConfig       `yaml:"redis"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit"`
	NATS          NATSConfig        `yaml:"nats"`
	Log           LogConfig         `yaml:"log"`
}

// APIKeysConfig contains paths to files containing API keys for providers.
// If not specified, keys are loaded from environment variables or default
// file locations (~/.openrouter-api-key, ~/.openai-api-key, ...).
type APIKeysConfig struct {
	Anthropic  string `yaml:"anthropic"`
	OpenAI     string `yaml:"openai"`
	OpenRouter string `yaml:"openrouter"`
	Voyage     string `yaml:"voyage"`
	Cohere     string `yaml:"cohere"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	Port            int           `yaml:"port"`
	TLS             TLSConfig     `yaml:"tls"`
	CORS            CORSConfig    `yaml:"cors"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"` // Largest inbound websocket frame
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ChatConfig holds the tunables of the conversation turn pipeline.
type ChatConfig struct {
	SimilarityK      int            `yaml:"similarity_k"`
	RerankTopN       int            `yaml:"rerank_top_n"`
	Temperature      float64        `yaml:"temperature"`
	MaxTokens        int            `yaml:"max_tokens"`
	RefinerMaxTokens int            `yaml:"refiner_max_tokens"`
	Timeouts         TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig bounds each pipeline stage.
type TimeoutsConfig struct {
	Refine   time.Duration `yaml:"refine"`
	Search   time.Duration `yaml:"search"`
	Rerank   time.Duration `yaml:"rerank"`
	Generate time.Duration `yaml:"generate"`
}

// LLMConfig contains settings for an LLM provider.
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"` // Embedding providers only
}

// RerankConfig selects the rerank provider.
type RerankConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// VectorStoreConfig selects and configures the similarity search backend.
type VectorStoreConfig struct {
	Provider   string         `yaml:"provider"`
	Collection string         `yaml:"collection"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
	Database   DatabaseConfig `yaml:"database"`
	Table      TableSource    `yaml:"table"`
}

// QdrantConfig contains Qdrant connection settings.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	ContentKey string `yaml:"content_key"` // Payload field holding passage text
	VectorName string `yaml:"vector_name"` // Named vector, empty for the default
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// TableSource defines a table with text and vector columns for pgvector
// similarity search.
type TableSource struct {
	Table        string `yaml:"table"`
	TextColumn   string `yaml:"text_column"`
	VectorColumn string `yaml:"vector_column"`
	IDColumn     string `yaml:"id_column"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig bounds new websocket connections per client address.
type RateLimitConfig struct {
	MaxConnections int           `yaml:"max_connections"`
	Window         time.Duration `yaml:"window"`
}

// NATSConfig contains settings for publishing turn events.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   "0.0.0.0",
			Port:            8080,
			MaxMessageBytes: 64 * 1024,
			ShutdownTimeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			SimilarityK:      10,
			RerankTopN:       6,
			Temperature:      0.1,
			MaxTokens:        2000,
			RefinerMaxTokens: 200,
			Timeouts: TimeoutsConfig{
				Refine:   30 * time.Second,
				Search:   20 * time.Second,
				Rerank:   20 * time.Second,
				Generate: 120 * time.Second,
			},
		},
		CompletionLLM: LLMConfig{
			Provider: ProviderOpenRouter,
			Model:    "google/gemini-2.0-flash-001",
		},
		EmbeddingLLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Rerank: RerankConfig{
			Provider: ProviderCohere,
			Model:    "rerank-v3.5",
		},
		VectorStore: VectorStoreConfig{
			Provider:   VectorStoreQdrant,
			Collection: "uncitral",
			Qdrant: QdrantConfig{
				ContentKey: "page_content",
			},
			Database: DatabaseConfig{
				Port:    5432,
				SSLMode: "prefer",
			},
			Table: TableSource{
				TextColumn:   "content",
				VectorColumn: "embedding",
				IDColumn:     "id",
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		RateLimit: RateLimitConfig{
			MaxConnections: 30,
			Window:         time.Minute,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Stream:  "RAGCHAT",
			Subject: "ragchat.turns.completed",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
