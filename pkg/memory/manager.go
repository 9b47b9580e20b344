package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/embedding"
	"github.com/harun/recall/pkg/oracle"
	"github.com/harun/recall/pkg/vectorstore"
)

// ErrNotFound is returned when a memory id is not in the store
var ErrNotFound = errors.New("memory not found")

const tracerName = "recall.memory"

// Oracle makes the judgement calls of the memory policy
type Oracle interface {
	Classify(ctx context.Context, text string) (oracle.SalienceDecision, error)
	Adjudicate(ctx context.Context, incoming, existing string) (oracle.MergeDecision, error)
	Summarize(ctx context.Context, text string) (string, error)
	ScoreImportance(ctx context.Context, text string) (float64, error)
	SummarizeThread(ctx context.Context, contents []string) (string, error)
}

// Policy holds the tunable thresholds of the memory policy
type Policy struct {
	DuplicateThreshold     float64 // nearest-neighbour similarity above which adjudication starts
	TieBand                float64 // similarity difference treated as a tie in ranking
	MinContentLength       int     // shorter text is trivial
	ReconcileBatch         int     // salient memories examined per reconciliation sweep
	ConsolidateMin         int     // fewest memories worth consolidating
	ConsolidatedImportance float64
}

// DefaultPolicy returns the standard thresholds
func DefaultPolicy() Policy {
	return Policy{
		DuplicateThreshold:     0.8,
		TieBand:                0.1,
		MinContentLength:       5,
		ReconcileBatch:         5,
		ConsolidateMin:         3,
		ConsolidatedImportance: 0.7,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.DuplicateThreshold <= 0 {
		p.DuplicateThreshold = d.DuplicateThreshold
	}
	if p.TieBand <= 0 {
		p.TieBand = d.TieBand
	}
	if p.MinContentLength <= 0 {
		p.MinContentLength = d.MinContentLength
	}
	if p.ReconcileBatch <= 0 {
		p.ReconcileBatch = d.ReconcileBatch
	}
	if p.ConsolidateMin <= 0 {
		p.ConsolidateMin = d.ConsolidateMin
	}
	if p.ConsolidatedImportance <= 0 {
		p.ConsolidatedImportance = d.ConsolidatedImportance
	}
	return p
}

// Config holds memory manager configuration
type Config struct {
	Store    vectorstore.Store
	Embedder embedding.Provider
	Oracle   Oracle
	Logger   zerolog.Logger
	Policy   Policy
	Clock    func() time.Time // defaults to time.Now
}

// Manager mediates between callers and the embedding, oracle and store
// collaborators. It keeps no mutable state of its own.
type Manager struct {
	store    vectorstore.Store
	embedder embedding.Provider
	oracle   Oracle
	logger   zerolog.Logger
	policy   Policy
	clock    func() time.Time
}

// NewManager creates a new memory manager
func NewManager(cfg Config) (*Manager, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, errors.New("vector store is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if cfg.Store.Dimension() != cfg.Embedder.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d, store holds %d",
			vectorstore.ErrDimensionMismatch, cfg.Embedder.Dimension(), cfg.Store.Dimension())
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	m := &Manager{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		oracle:   cfg.Oracle,
		logger:   cfg.Logger.With().Str("component", "memory").Logger(),
		policy:   cfg.Policy.withDefaults(),
		clock:    clock,
	}

	m.logger.Info().
		Int("dimension", cfg.Store.Dimension()).
		Float64("duplicate_threshold", m.policy.DuplicateThreshold).
		Msg("Memory manager initialized")
	return m, nil
}

// Policy returns the effective thresholds
func (m *Manager) Policy() Policy {
	return m.policy
}

// Close closes the underlying store
func (m *Manager) Close() error {
	return m.store.Close()
}

// GetMemory fetches one memory by id.
func (m *Manager) GetMemory(ctx context.Context, id string) (*Memory, error) {
	records, err := m.store.Fetch(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memory %s: %w", id, err)
	}
	for _, r := range records {
		if r.ID != id {
			continue
		}
		mem, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		return &mem, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

// touch bumps lastAccessed without letting it fall behind the creation time.
func (m *Manager) touch(mem *Memory) {
	now := m.now()
	if now.Before(mem.Metadata.Timestamp) {
		now = mem.Metadata.Timestamp
	}
	mem.Metadata.LastAccessed = now
}

func (m *Manager) upsert(ctx context.Context, memories ...Memory) error {
	records := make([]vectorstore.Record, len(memories))
	for i, mem := range memories {
		records[i] = mem.toRecord()
	}
	if err := m.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}

func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(vec) != m.store.Dimension() {
		return nil, fmt.Errorf("%w: embedding has %d, store holds %d",
			vectorstore.ErrDimensionMismatch, len(vec), m.store.Dimension())
	}
	return vec, nil
}

// memories converts store hits into memories, skipping malformed ones.
func (m *Manager) memories(matches []vectorstore.Match) []Memory {
	out := make([]Memory, 0, len(matches))
	for _, match := range matches {
		mem, err := fromRecord(match.Record)
		if err != nil {
			m.logger.Warn().Err(err).Str("id", match.ID).Msg("Skipping malformed memory record")
			continue
		}
		out = append(out, mem)
	}
	return out
}

// operation wraps a manager call with a span, a logger and metrics.
type operation struct {
	name   string
	start  time.Time
	span   trace.Span
	logger zerolog.Logger
}

func (m *Manager) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory."+name, attrs...)
	return ctx, &operation{
		name:   name,
		start:  time.Now(),
		span:   span,
		logger: tracing.LoggerFromContext(ctx, m.logger),
	}
}

func (op *operation) end(outcome string, err error) {
	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
		outcome = "error"
	}
	op.span.SetAttributes(attribute.String("outcome", outcome))
	op.span.End()
	observability.RecordMemoryOperation(op.name, outcome, time.Since(op.start))
}
