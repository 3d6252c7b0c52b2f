package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with environment
// variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VECTORSTORE_HOST, EMBEDDINGS_BASE_URL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// The configPath parameter may be empty, in which case only environment
// variables and defaults apply.
//
// Environment variables map to config keys by splitting on the first
// underscore: VECTORSTORE_DEFAULT_COLLECTION -> vectorstore.default_collection.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables. Variables are split on the first
	// underscore into section and field: CHAT_API_KEY -> chat.api_key.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Wiki defaults
	if cfg.Wiki.Extension == "" {
		cfg.Wiki.Extension = ".txt"
	}
	if cfg.Wiki.DefaultInstitution == "" {
		cfg.Wiki.DefaultInstitution = "internal"
	}

	// Vector store defaults
	if cfg.VectorStore.Host == "" {
		cfg.VectorStore.Host = "localhost"
	}
	if cfg.VectorStore.Port == 0 {
		cfg.VectorStore.Port = 8000
	}
	if cfg.VectorStore.Tenant == "" {
		cfg.VectorStore.Tenant = "default_tenant"
	}
	if cfg.VectorStore.Database == "" {
		cfg.VectorStore.Database = "default_database"
	}
	if cfg.VectorStore.DefaultCollection == "" {
		cfg.VectorStore.DefaultCollection = "reports"
	}
	if cfg.VectorStore.Timeout == 0 {
		cfg.VectorStore.Timeout = Duration(30 * time.Second)
	}

	// Embeddings defaults
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:11434"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "nomic-embed-text"
	}
	if cfg.Embeddings.KeepAlive == "" {
		cfg.Embeddings.KeepAlive = "10m"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(30 * time.Second)
	}

	// Chat defaults
	if cfg.Chat.URL == "" {
		cfg.Chat.URL = "http://localhost:11434/v1/chat/completions"
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.3
	}
	if cfg.Chat.TopP == 0 {
		cfg.Chat.TopP = 0.9
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 4096
	}
	if cfg.Chat.Timeout == 0 {
		cfg.Chat.Timeout = Duration(120 * time.Second)
	}

	// Prompts defaults
	if cfg.Prompts.DefaultLanguage == "" {
		cfg.Prompts.DefaultLanguage = "en"
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
