package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int // 0 uses the model's native width
}

// OpenAIProvider implements Provider for OpenAI
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
	truncate  bool
}

// NewOpenAIProvider creates a new OpenAI embedding provider
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	dimension := 1536
	if model == "text-embedding-3-large" {
		dimension = 3072
	}
	truncate := false
	if cfg.Dimension > 0 && cfg.Dimension != dimension {
		dimension = cfg.Dimension
		truncate = true
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
		truncate:  truncate,
	}, nil
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *OpenAIProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.truncate {
		params.Dimensions = openai.Int(int64(p.dimension))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", ErrEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs", ErrEmbedding, len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, fmt.Errorf("%w: openai returned out of range index %d", ErrEmbedding, data.Index)
		}
		vec := make([]float32, len(data.Embedding))
		for i, x := range data.Embedding {
			vec[i] = float32(x)
		}
		embeddings[data.Index] = vec
	}

	if err := checkDimension(embeddings, p.dimension); err != nil {
		return nil, err
	}
	return embeddings, nil
}
