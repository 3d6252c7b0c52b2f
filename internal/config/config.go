// Package config provides configuration loading for reportd.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config is the root configuration for reportd.
type Config struct {
	Wiki        WikiConfig        `koanf:"wiki"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Chat        ChatConfig        `koanf:"chat"`
	Prompts     PromptsConfig     `koanf:"prompts"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// WikiConfig describes the document source tree.
type WikiConfig struct {
	// BasePath is the root directory of the document tree. Identifiers are
	// derived from paths relative to this prefix.
	BasePath string `koanf:"base_path"`

	// Extension is the document file extension indexed by batch ingestion.
	Extension string `koanf:"extension"`

	// DefaultInstitution is assigned when an identifier carries a year
	// segment instead of an institution segment.
	DefaultInstitution string `koanf:"default_institution"`
}

// VectorStoreConfig holds connection settings for the vector database.
type VectorStoreConfig struct {
	Host              string   `koanf:"host"`
	Port              int      `koanf:"port"`
	Tenant            string   `koanf:"tenant"`
	Database          string   `koanf:"database"`
	DefaultCollection string   `koanf:"default_collection"`
	Timeout           Duration `koanf:"timeout"`
}

// EmbeddingsConfig holds settings for the embedding service.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	// KeepAlive is passed through to the embedding server so the model stays
	// resident between chunk requests (e.g. "10m").
	KeepAlive string   `koanf:"keep_alive"`
	Timeout   Duration `koanf:"timeout"`
}

// ChatConfig holds settings for the chat-completions endpoint.
type ChatConfig struct {
	URL         string   `koanf:"url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	TopP        float64  `koanf:"top_p"`
	TopK        int      `koanf:"top_k"`
	MinP        float64  `koanf:"min_p"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
}

// PromptsConfig holds settings for prompt template loading.
type PromptsConfig struct {
	Dir             string `koanf:"dir"`
	DefaultLanguage string `koanf:"default_language"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.VectorStore.Host == "" {
		return fmt.Errorf("vectorstore.host required")
	}
	if c.VectorStore.Port <= 0 || c.VectorStore.Port > 65535 {
		return fmt.Errorf("vectorstore.port must be 1-65535, got %d", c.VectorStore.Port)
	}
	if c.VectorStore.Tenant == "" {
		return fmt.Errorf("vectorstore.tenant required")
	}
	if c.VectorStore.Database == "" {
		return fmt.Errorf("vectorstore.database required")
	}
	if c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url required")
	}
	if _, err := url.Parse(c.Embeddings.BaseURL); err != nil {
		return fmt.Errorf("embeddings.base_url invalid: %w", err)
	}
	if c.Chat.URL != "" {
		if _, err := url.Parse(c.Chat.URL); err != nil {
			return fmt.Errorf("chat.url invalid: %w", err)
		}
	}
	if !strings.HasPrefix(c.Wiki.Extension, ".") {
		return fmt.Errorf("wiki.extension must start with '.', got %q", c.Wiki.Extension)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
