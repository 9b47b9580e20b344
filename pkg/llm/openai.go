package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator implements Generator for OpenAI chat completions
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIGenerator creates a new OpenAI generator
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Provider returns the provider name
func (g *OpenAIGenerator) Provider() string {
	return "openai"
}

// Generate makes a chat completion call to OpenAI
func (g *OpenAIGenerator) Generate(ctx context.Context, request Request) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}
	if request.Prompt != "" {
		messages = append(messages, openai.UserMessage(request.Prompt))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: messages,
	}

	maxTokens := pick(request.MaxTokens, g.maxTokens)
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	temperature := pickFloat(request.Temperature, g.temperature)
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}

	response, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", generationError(g.Provider(), err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", generationError(g.Provider(), ErrEmptyCompletion)
	}

	return response.Choices[0].Message.Content, nil
}

func pick(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pickFloat(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
