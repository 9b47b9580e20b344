package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicGenerator implements Generator for Anthropic Claude
type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewAnthropicGenerator creates a new Anthropic generator
func NewAnthropicGenerator(cfg Config) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicGenerator{
		client:      anthropic.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Provider returns the provider name
func (g *AnthropicGenerator) Provider() string {
	return "anthropic"
}

// Generate makes a messages call to Anthropic Claude
func (g *AnthropicGenerator) Generate(ctx context.Context, request Request) (string, error) {
	prompt := request.Prompt
	if prompt == "" {
		// The messages API needs at least one user turn.
		prompt = "Respond according to the instructions."
	}

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(g.model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		MaxTokens: int64(pick(request.MaxTokens, g.maxTokens, defaultAnthropicMaxTokens)),
	}
	if request.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemPrompt},
		}
	}
	if temperature := pickFloat(request.Temperature, g.temperature); temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", generationError(g.Provider(), err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return "", generationError(g.Provider(), ErrEmptyCompletion)
	}

	return text.String(), nil
}
