package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaGenerator implements Generator against a local Ollama server.
// It needs no credentials.
type OllamaGenerator struct {
	client      *ollama.Client
	model       string
	temperature float64
}

// NewOllamaGenerator creates a generator for a local Ollama model
func NewOllamaGenerator(cfg Config) (*OllamaGenerator, error) {
	host := cfg.BaseURL
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
		model = "llama3.2"
	}

	return &OllamaGenerator{
		client:      ollama.NewClient(u, &http.Client{Timeout: 120 * time.Second}),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Provider returns the provider name
func (g *OllamaGenerator) Provider() string {
	return "ollama"
}

// Generate runs a non-streaming completion
func (g *OllamaGenerator) Generate(ctx context.Context, request Request) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  g.model,
		System: request.SystemPrompt,
		Prompt: request.Prompt,
		Stream: &stream,
	}
	if temperature := pickFloat(request.Temperature, g.temperature); temperature > 0 {
		req.Options = map[string]any{"temperature": temperature}
	}

	var text strings.Builder
	err := g.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		text.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", generationError(g.Provider(), err)
	}
	if text.Len() == 0 {
		return "", generationError(g.Provider(), ErrEmptyCompletion)
	}

	return text.String(), nil
}
