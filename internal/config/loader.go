package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RECALL_LLM_API_KEY
const EnvPrefix = "RECALL"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file when present, applies RECALL_* environment
// overrides and fills derived paths. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default for AutomaticEnv to reach it on Unmarshal.
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyDerived(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to the config file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("data_dir", cfg.DataDir)
	v.Set("logging", cfg.Logging)
	v.Set("tracing", cfg.Tracing)
	v.Set("llm", cfg.LLM)
	v.Set("embedding", cfg.Embedding)
	v.Set("store", cfg.Store)
	v.Set("memory", cfg.Memory)
	v.Set("maintenance", cfg.Maintenance)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".recall", "recall.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

func setDefaults(v *viper.Viper, cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	setTree(v, "", tree)
	return nil
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setTree(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// applyDerived fills paths under the data directory and picks up the
// providers' conventional API key variables.
func applyDerived(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".recall")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "recall.log")
	}
	if cfg.Logging.AuditFile == "" {
		cfg.Logging.AuditFile = filepath.Join(cfg.DataDir, "audit.log")
	}
	if cfg.Tracing.File == "" {
		cfg.Tracing.File = filepath.Join(cfg.DataDir, "traces.jsonl")
	}
	if cfg.Maintenance.StatePath == "" {
		cfg.Maintenance.StatePath = filepath.Join(cfg.DataDir, "maintenance.json")
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Backend {
		case "chromem":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "chromem")
		case "sqlite":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "memories.db")
		}
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = providerKey(cfg.Embedding.Provider)
	}
	return nil
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
