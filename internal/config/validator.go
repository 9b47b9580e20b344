package config

import (
	"fmt"
	"strings"

	"github.com/harun/recall/pkg/cron"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateFraction validates a threshold in [0, 1]
func (v *Validator) ValidateFraction(name string, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %f", name, value)
	}
	return nil
}

// ValidateSchedule validates a maintenance schedule
func (v *Validator) ValidateSchedule(schedule string) error {
	if _, err := cron.ParseSchedule(schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if cfg.LLM.Provider != "ollama" && cfg.LLM.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.LLM.APIKey, cfg.LLM.Provider); err != nil {
			errors = append(errors, fmt.Errorf("llm: %w", err))
		}
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Embedding.APIKey, "openai"); err != nil {
			errors = append(errors, fmt.Errorf("embedding: %w", err))
		}
	}
	if err := v.ValidateTemperature(cfg.LLM.Temperature); err != nil {
		errors = append(errors, fmt.Errorf("llm: %w", err))
	}
	if cfg.LLM.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.LLM.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("llm: %w", err))
		}
	}
	if cfg.Embedding.CacheSize < 0 {
		errors = append(errors, fmt.Errorf("embedding: cache_size must be >= 0"))
	}

	m := cfg.Memory
	for name, value := range map[string]float64{
		"memory.duplicate_threshold":     m.DuplicateThreshold,
		"memory.tie_band":                m.TieBand,
		"memory.consolidated_importance": m.ConsolidatedImportance,
	} {
		if err := v.ValidateFraction(name, value); err != nil {
			errors = append(errors, err)
		}
	}
	if m.MinContentLength < 0 {
		errors = append(errors, fmt.Errorf("memory.min_content_length must be >= 0"))
	}
	if m.ReconcileBatch < 0 || m.ReconcileBatch == 1 {
		errors = append(errors, fmt.Errorf("memory.reconcile_batch must be 0 (default) or at least 2"))
	}
	if m.ConsolidateMin < 0 {
		errors = append(errors, fmt.Errorf("memory.consolidate_min must be >= 0"))
	}

	if cfg.Maintenance.Enabled {
		if err := v.ValidateSchedule(cfg.Maintenance.Schedule); err != nil {
			errors = append(errors, err)
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
