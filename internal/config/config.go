package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the recall configuration
type Config struct {
	// Data directory for stores, logs and job state
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
	Tracing     TracingConfig     `json:"tracing" mapstructure:"tracing"`
	LLM         LLMConfig         `json:"llm" mapstructure:"llm"`
	Embedding   EmbeddingConfig   `json:"embedding" mapstructure:"embedding"`
	Store       StoreConfig       `json:"store" mapstructure:"store"`
	Memory      MemoryConfig      `json:"memory" mapstructure:"memory"`
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// TracingConfig controls span export. Spans are written as JSON lines to
// File when Enabled, and sampled but dropped otherwise.
type TracingConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	File    string `json:"file" mapstructure:"file"`
}

// LLMConfig selects the text-generation provider behind the oracle
type LLMConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai, ollama
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai, ollama, mock
	Model     string `json:"model" mapstructure:"model"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
	CacheSize int64  `json:"cache_size" mapstructure:"cache_size"` // 0 disables the cache
}

// StoreConfig selects the vector store backend
type StoreConfig struct {
	Backend   string `json:"backend" mapstructure:"backend"` // chromem, sqlite, postgres
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Path      string `json:"path" mapstructure:"path"` // chromem directory or sqlite file
	DSN       string `json:"dsn" mapstructure:"dsn"`   // postgres
	Compress  bool   `json:"compress" mapstructure:"compress"`
}

// MemoryConfig holds the memory policy thresholds
type MemoryConfig struct {
	DuplicateThreshold     float64 `json:"duplicate_threshold" mapstructure:"duplicate_threshold"`
	TieBand                float64 `json:"tie_band" mapstructure:"tie_band"`
	MinContentLength       int     `json:"min_content_length" mapstructure:"min_content_length"`
	ReconcileBatch         int     `json:"reconcile_batch" mapstructure:"reconcile_batch"`
	ConsolidateMin         int     `json:"consolidate_min" mapstructure:"consolidate_min"`
	ConsolidatedImportance float64 `json:"consolidated_importance" mapstructure:"consolidated_importance"`
}

// MaintenanceConfig configures the background service run by `recall serve`
type MaintenanceConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Schedule    string `json:"schedule" mapstructure:"schedule"` // "every 1h", cron expression or "at <time>"
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"`
	StatePath   string `json:"state_path" mapstructure:"state_path"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   512,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			CacheSize: 1024,
		},
		Store: StoreConfig{
			Backend:   "chromem",
			Namespace: "memories",
		},
		Memory: MemoryConfig{
			DuplicateThreshold:     0.8,
			TieBand:                0.1,
			MinContentLength:       5,
			ReconcileBatch:         5,
			ConsolidateMin:         3,
			ConsolidatedImportance: 0.7,
		},
		Maintenance: MaintenanceConfig{
			Enabled:     true,
			Schedule:    "every 1h",
			MetricsAddr: "127.0.0.1:9464",
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.LLM.APIKey = mask(c.LLM.APIKey)
	masked.Embedding.APIKey = mask(c.Embedding.APIKey)
	masked.Store.DSN = mask(c.Store.DSN)
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// Validate checks the settings needed to build the memory manager
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm: api_key is required for provider %s", c.LLM.Provider)
		}
	case "ollama":
	default:
		return fmt.Errorf("llm: invalid provider %q (must be: anthropic, openai, ollama)", c.LLM.Provider)
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding: api_key is required for provider openai")
		}
	case "ollama", "mock":
	default:
		return fmt.Errorf("embedding: invalid provider %q (must be: openai, ollama, mock)", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding: dimension must be positive")
	}

	switch c.Store.Backend {
	case "chromem", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store: dsn is required for backend postgres")
		}
	default:
		return fmt.Errorf("store: invalid backend %q (must be: chromem, sqlite, postgres)", c.Store.Backend)
	}
	if c.Store.Namespace == "" {
		return fmt.Errorf("store: namespace is required")
	}

	return nil
}
