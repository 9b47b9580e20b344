package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaConfig configures the local Ollama embedding provider.
type OllamaConfig struct {
	Host      string // defaults to $OLLAMA_HOST, then http://localhost:11434
	Model     string
	Dimension int
}

// OllamaProvider implements Provider against a local Ollama server.
type OllamaProvider struct {
	client    *ollama.Client
	model     string
	dimension int
}

// NewOllamaProvider creates a provider for an Ollama embedding model.
// Dimension must match the model, since Ollama does not report it up front.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	host := cfg.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &OllamaProvider{
		client:    ollama.NewClient(u, httpClient),
		model:     model,
		dimension: dimension,
	}, nil
}

func (p *OllamaProvider) Dimension() int {
	return p.dimension
}

func (p *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *OllamaProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	res, err := p.client.Embed(ctx, &ollama.EmbedRequest{
		Model: p.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %w", ErrEmbedding, err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned an incomplete batch", ErrEmbedding)
	}

	if err := checkDimension(res.Embeddings, p.dimension); err != nil {
		return nil, err
	}
	return res.Embeddings, nil
}
