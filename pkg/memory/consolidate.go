package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/recall/internal/observability"
)

// ConsolidateThreadMemories summarizes a thread of memories into one new
// salient memory that relates back to its sources. Fewer than
// Policy.ConsolidateMin inputs is a no-op returning nil. Sources are left
// untouched. The summary is stored without the duplicate check AddMemory
// runs, so it may sit above the duplicate threshold next to its sources
// until a reconcile pass merges them.
func (m *Manager) ConsolidateThreadMemories(ctx context.Context, memories []Memory) (*Memory, error) {
	ctx, op := m.begin(ctx, "consolidate", attribute.Int("sources", len(memories)))

	if len(memories) < m.policy.ConsolidateMin {
		op.end("skipped", nil)
		return nil, nil
	}

	mem, err := m.consolidate(ctx, memories)
	op.end(OutcomeCreated, err)
	if err != nil {
		op.logger.Error().Err(err).Int("sources", len(memories)).Msg("Failed to consolidate memories")
		return nil, err
	}

	op.logger.Info().
		Str("id", mem.ID).
		Strs("relations", mem.Metadata.Relations).
		Msg("Thread consolidated")
	return mem, nil
}

func (m *Manager) consolidate(ctx context.Context, sources []Memory) (*Memory, error) {
	contents := make([]string, len(sources))
	ids := make([]string, len(sources))
	tags := make([][]string, 0, len(sources)+1)
	for i, src := range sources {
		contents[i] = src.Content
		ids[i] = src.ID
		tags = append(tags, src.Metadata.Tags)
	}
	tags = append(tags, []string{TagConsolidated})

	summary, err := m.oracle.SummarizeThread(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("thread summarization failed: %w", err)
	}
	if summary == "" {
		return nil, errors.New("thread summarization returned no text")
	}

	vec, err := m.embed(ctx, summary)
	if err != nil {
		return nil, err
	}

	now := m.now()
	mem := Memory{
		ID:        uuid.NewString(),
		Content:   summary,
		Embedding: vec,
		Metadata: Metadata{
			Timestamp:    now,
			LastAccessed: now,
			Type:         TypeConversationConsolidated,
			Summary:      summary,
			Importance:   m.policy.ConsolidatedImportance,
			Version:      1,
			Salient:      true,
			Tags:         union("", tags...),
		},
	}
	mem.Metadata.Relations = union(mem.ID, ids)

	if err := m.upsert(ctx, mem); err != nil {
		return nil, err
	}
	observability.RecordMemoryAudit(ctx, "consolidate", mem.ID, "success", map[string]any{"sources": ids})
	return &mem, nil
}
