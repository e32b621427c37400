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
	"strings"
)

// Environment variable names for API keys.
const (
	EnvAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenRouterAPIKey = "OPENROUTER_KEY"
	EnvVoyageAPIKey     = "VOYAGE_API_KEY"
	EnvCohereAPIKey     = "COHERE_API_KEY"
)

// Default API key file paths (relative to home directory).
const (
	DefaultAnthropicKeyFile  = ".anthropic-api-key"
	DefaultOpenAIKeyFile     = ".openai-api-key"
	DefaultOpenRouterKeyFile = ".openrouter-api-key"
	DefaultVoyageKeyFile     = ".voyage-api-key"
	DefaultCohereKeyFile     = ".cohere-api-key"
)

// LoadedKeys holds all loaded API keys.
type LoadedKeys struct {
	Anthropic  string
	OpenAI     string
	OpenRouter string
	Voyage     string
	Cohere     string
}

// keySource describes where one provider's key may come from.
type keySource struct {
	name        string
	configPath  string
	envVar      string
	defaultFile string
	dest        *string
}

// APIKeyLoader handles loading API keys from configured paths, environment
// variables, or default file locations.
type APIKeyLoader struct {
	config APIKeysConfig
}

// NewAPIKeyLoader creates a new API key loader with the given configuration.
func NewAPIKeyLoader(cfg APIKeysConfig) *APIKeyLoader {
	return &APIKeyLoader{config: cfg}
}

func (l *APIKeyLoader) sources(keys *LoadedKeys) map[string]keySource {
	return map[string]keySource{
		ProviderAnthropic:  {"Anthropic", l.config.Anthropic, EnvAnthropicAPIKey, DefaultAnthropicKeyFile, &keys.Anthropic},
		ProviderOpenAI:     {"OpenAI", l.config.OpenAI, EnvOpenAIAPIKey, DefaultOpenAIKeyFile, &keys.OpenAI},
		ProviderOpenRouter: {"OpenRouter", l.config.OpenRouter, EnvOpenRouterAPIKey, DefaultOpenRouterKeyFile, &keys.OpenRouter},
		ProviderVoyage:     {"Voyage", l.config.Voyage, EnvVoyageAPIKey, DefaultVoyageKeyFile, &keys.Voyage},
		ProviderCohere:     {"Cohere", l.config.Cohere, EnvCohereAPIKey, DefaultCohereKeyFile, &keys.Cohere},
	}
}

// loadKey loads an API key with the following priority:
// 1. Configured file path (if specified in config)
// 2. Environment variable
// 3. Default file location (~/.provider-api-key)
func loadKey(src keySource) (string, error) {
	if src.configPath != "" {
		return readKeyFile(expandPath(src.configPath), src.name)
	}

	if key := os.Getenv(src.envVar); key != "" {
		return key, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(homeDir, src.defaultFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf(
			"%s API key not found: set %s environment variable or create %s",
			src.name, src.envVar, path)
	}

	return readKeyFile(path, src.name)
}

// readKeyFile reads an API key from a file.
func readKeyFile(path, providerName string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s API key file not found: %s", providerName, path)
		}
		return "", fmt.Errorf("failed to read %s API key: %w", providerName, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s API key file is empty: %s", providerName, path)
	}

	return key, nil
}

// RequiredProviders returns the distinct provider names whose keys the
// configuration needs. Ollama, bm25 and none need no key.
func (c *Config) RequiredProviders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range []string{c.CompletionLLM.Provider, c.EmbeddingLLM.Provider, c.Rerank.Provider} {
		p = strings.ToLower(p)
		switch p {
		case "", ProviderOllama, ProviderBM25, ProviderNone:
			continue
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// LoadRequiredKeys loads only the API keys required by the configured
// completion, embedding and rerank providers.
func (l *APIKeyLoader) LoadRequiredKeys(cfg *Config) (*LoadedKeys, error) {
	keys := &LoadedKeys{}
	sources := l.sources(keys)

	for _, provider := range cfg.RequiredProviders() {
		src, ok := sources[provider]
		if !ok {
			continue
		}
		key, err := loadKey(src)
		if err != nil {
			return nil, err
		}
		*src.dest = key
	}

	return keys, nil
}
