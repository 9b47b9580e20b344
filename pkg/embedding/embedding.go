// Package embedding maps text to fixed-length vectors.
//
// Invariants:
// - Every vector returned by a Provider has exactly Dimension() components.
// - Service failures are reported as errors wrapping ErrEmbedding.
//
// Usage:
//
//	p, _ := embedding.NewOpenAIProvider(embedding.OpenAIConfig{APIKey: key, Model: "text-embedding-3-small"})
//	vec, err := p.GenerateEmbedding(ctx, "user prefers tea")
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding marks a failure of the embedding service.
var ErrEmbedding = errors.New("embedding service failed")

// ErrMissingCredentials is returned when a hosted provider has no API key.
var ErrMissingCredentials = errors.New("embedding provider credentials are required")

// Provider generates vector embeddings from text
type Provider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config selects and configures a provider.
type Config struct {
	Provider  string // openai, ollama, mock
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	CacheSize int64 // entries kept by the cache decorator, 0 disables it
}

// New builds the provider named in cfg, wrapped in a cache when configured.
func New(cfg Config) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch cfg.Provider {
	case "openai":
		p, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
		})
	case "ollama":
		p, err = NewOllamaProvider(OllamaConfig{
			Host:      cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	case "mock":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 384
		}
		p = NewMockProvider(dim)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		return NewCachedProvider(p, cfg.CacheSize)
	}
	return p, nil
}

// checkDimension validates a batch against the expected width.
func checkDimension(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector at index %d", ErrEmbedding, i)
		}
		if dim > 0 && len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbedding, i, len(v), dim)
		}
	}
	return nil
}
