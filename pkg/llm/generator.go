// Package llm wraps hosted and local chat models behind a single
// text-completion call. Memory policy never talks to an SDK directly.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGeneration marks a failure of the text-generation service
	ErrGeneration = errors.New("text generation failed")

	// ErrMissingCredentials is returned when a hosted provider has no API key
	ErrMissingCredentials = errors.New("llm provider credentials are required")

	// ErrEmptyCompletion is returned when the model produced no text
	ErrEmptyCompletion = errors.New("model returned no text")
)

// Generator is a text-completion service
type Generator interface {
	// Generate returns the model's completion for the request
	Generate(ctx context.Context, request Request) (string, error)

	// Provider returns the provider name
	Provider() string
}

// Request contains the parameters for one completion
type Request struct {
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// Config selects and configures a generator
type Config struct {
	Provider    string // anthropic, openai, ollama
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// New creates a generator from cfg. Hosted providers fail fast without a key.
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicGenerator(cfg)
	case "openai":
		return NewOpenAIGenerator(cfg)
	case "ollama":
		return NewOllamaGenerator(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func generationError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGeneration, provider, err)
}
