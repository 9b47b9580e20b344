// Package oracle turns a text-generation service into typed decisions.
//
// Invariants:
// - Output that does not match the expected structure fails closed:
//   Classify yields a non-salient decision and Adjudicate yields discard.
// - Only service failures surface as errors (wrapping llm.ErrGeneration).
//
// Usage:
//
//	o, _ := oracle.New(oracle.Config{Generator: gen, Logger: logger})
//	d, err := o.Classify(ctx, "My name is Alex and I love hiking")
//	_ = d.Summary
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/llm"
	"github.com/rs/zerolog"
)

// DefaultImportance is used when the importance score cannot be parsed.
const DefaultImportance = 0.5

// SalienceDecision is the result of salience classification
type SalienceDecision struct {
	Salient bool
	Summary string
}

// MergeDecision is the result of conflict adjudication
type MergeDecision struct {
	Update  bool
	Summary string
}

// Config holds oracle configuration
type Config struct {
	Generator llm.Generator
	Logger    zerolog.Logger
}

// Oracle asks the generator for memory decisions
type Oracle struct {
	gen    llm.Generator
	logger zerolog.Logger
}

// New creates an oracle over cfg.Generator
func New(cfg Config) (*Oracle, error) {
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	return &Oracle{
		gen:    cfg.Generator,
		logger: cfg.Logger.With().Str("component", "oracle").Str("provider", cfg.Generator.Provider()).Logger(),
	}, nil
}

// Classify decides whether text holds a durable fact.
func (o *Oracle) Classify(ctx context.Context, text string) (SalienceDecision, error) {
	raw, err := o.gen.Generate(ctx, llm.Request{SystemPrompt: classifyPrompt, Prompt: text})
	if err != nil {
		observability.RecordOracleDecision("salience", "error")
		return SalienceDecision{}, err
	}

	d, ok := parseSalience(raw)
	switch {
	case !ok:
		o.logger.Warn().Str("output", truncate(raw, 200)).Msg("Unparseable salience output, treating as not salient")
		observability.RecordOracleDecision("salience", "unparsed")
	case d.Salient:
		observability.RecordOracleDecision("salience", "salient")
	default:
		observability.RecordOracleDecision("salience", "not_salient")
	}
	return d, nil
}

// Adjudicate decides whether incoming should replace the existing fact.
func (o *Oracle) Adjudicate(ctx context.Context, incoming, existing string) (MergeDecision, error) {
	raw, err := o.gen.Generate(ctx, llm.Request{
		SystemPrompt: adjudicatePrompt,
		Prompt:       fmt.Sprintf(adjudicateTemplate, existing, incoming),
	})
	if err != nil {
		observability.RecordOracleDecision("merge", "error")
		return MergeDecision{}, err
	}

	d, ok := parseMerge(raw)
	switch {
	case !ok:
		o.logger.Warn().Str("output", truncate(raw, 200)).Msg("Unparseable merge output, discarding candidate")
		observability.RecordOracleDecision("merge", "unparsed")
	case d.Update:
		observability.RecordOracleDecision("merge", "update")
	default:
		observability.RecordOracleDecision("merge", "discard")
	}
	return d, nil
}

// Summarize restates text in one sentence.
func (o *Oracle) Summarize(ctx context.Context, text string) (string, error) {
	raw, err := o.gen.Generate(ctx, llm.Request{SystemPrompt: summarizePrompt, Prompt: text})
	if err != nil {
		return "", err
	}
	summary := cleanText(raw)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", llm.ErrGeneration)
	}
	return summary, nil
}

// ScoreImportance rates text in [0,1]. Unparseable output scores
// DefaultImportance.
func (o *Oracle) ScoreImportance(ctx context.Context, text string) (float64, error) {
	raw, err := o.gen.Generate(ctx, llm.Request{SystemPrompt: importancePrompt, Prompt: text})
	if err != nil {
		return 0, err
	}
	score, ok := parseImportance(raw)
	if !ok {
		o.logger.Debug().Str("output", truncate(raw, 200)).Msg("Unparseable importance output, using default")
		return DefaultImportance, nil
	}
	return score, nil
}

// SummarizeThread condenses several messages of one thread.
func (o *Oracle) SummarizeThread(ctx context.Context, contents []string) (string, error) {
	raw, err := o.gen.Generate(ctx, llm.Request{
		SystemPrompt: consolidatePrompt,
		Prompt:       strings.Join(contents, "\n\n"),
	})
	if err != nil {
		return "", err
	}
	summary := cleanText(raw)
	if summary == "" {
		return "", fmt.Errorf("%w: empty thread summary", llm.ErrGeneration)
	}
	return summary, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
