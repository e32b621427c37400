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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "pgedge-rag-chat.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/pgedge/" + ConfigFileName

	// DotEnvFileName is the environment file read from the working
	// directory when present.
	DotEnvFileName = ".env"
)

// Load builds the configuration from, in increasing precedence, built-in
// defaults, a YAML file, a .env file and the process environment.
//
// YAML search order:
//  1. Explicit path (if provided; must exist)
//  2. /etc/pgedge/pgedge-rag-chat.yaml
//  3. pgedge-rag-chat.yaml in the binary's directory
//
// Running without any YAML file is valid; the environment alone can
// configure the server.
func Load(path string) (*Config, error) {
	return LoadFiles(path, DotEnvFileName)
}

// LoadFiles is Load with an explicit .env path. An empty envFile skips
// .env loading.
func LoadFiles(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile finds the configuration file using the search order. It
// returns "" without error when no default location has a file.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile parses a YAML file over cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyDefaults fills values that depend on other settings.
func applyDefaults(cfg *Config) {
	vs := &cfg.VectorStore

	if vs.Table.Table == "" {
		vs.Table.Table = vs.Collection
	}
	if vs.Database.Port == 0 {
		vs.Database.Port = 5432
	}
	if vs.Database.SSLMode == "" {
		vs.Database.SSLMode = "prefer"
	}
	if vs.Qdrant.ContentKey == "" {
		vs.Qdrant.ContentKey = "page_content"
	}

	if cfg.CompletionLLM.Provider == ProviderOpenRouter && cfg.CompletionLLM.BaseURL == "" {
		cfg.CompletionLLM.BaseURL = "https://openrouter.ai/api/v1"
	}
}
