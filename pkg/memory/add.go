package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/oracle"
	"github.com/harun/recall/pkg/similarity"
	"github.com/harun/recall/pkg/vectorstore"
)

// Add outcomes, also used as metric labels
const (
	OutcomeTrivial    = "trivial"
	OutcomeNotSalient = "not_salient"
	OutcomeCreated    = "created"
	OutcomeUpdated    = "updated"
	OutcomeDiscarded  = "discarded"
)

// AddMemory runs the add pipeline: triviality gate, salience gate, embedding
// and importance, duplicate search, then create. It returns the created or
// updated memory, or nil when nothing was stored. Collaborator failures are
// logged and returned.
func (m *Manager) AddMemory(ctx context.Context, content, memType string, tags, relatedIDs []string) (*Memory, error) {
	if memType == "" {
		memType = TypeConversation
	}

	ctx, op := m.begin(ctx, "add", attribute.String("type", memType))
	mem, outcome, err := m.add(ctx, op.logger, content, memType, tags, relatedIDs)
	op.end(outcome, err)

	if err != nil {
		op.logger.Error().Err(err).Str("type", memType).Msg("Failed to add memory")
		return nil, err
	}

	event := op.logger.Debug().Str("outcome", outcome)
	if mem != nil {
		event = event.Str("id", mem.ID)
	}
	event.Msg("Add memory completed")
	return mem, nil
}

func (m *Manager) add(ctx context.Context, logger zerolog.Logger, content, memType string, tags, relatedIDs []string) (*Memory, string, error) {
	if IsTrivial(content, m.policy.MinContentLength) {
		return nil, OutcomeTrivial, nil
	}

	decision, err := m.oracle.Classify(ctx, content)
	if err != nil {
		return nil, "", fmt.Errorf("salience classification failed: %w", err)
	}
	if !decision.Salient && memType != TypeImportant {
		return nil, OutcomeNotSalient, nil
	}

	vec, err := m.embed(ctx, content)
	if err != nil {
		return nil, "", err
	}
	importance, err := m.oracle.ScoreImportance(ctx, content)
	if err != nil {
		return nil, "", fmt.Errorf("importance scoring failed: %w", err)
	}

	summary := decision.Summary
	if summary == "" {
		// Admitted by the important override; salient records need a summary.
		if summary, err = m.oracle.Summarize(ctx, content); err != nil {
			return nil, "", fmt.Errorf("summarization failed: %w", err)
		}
	}

	if decision.Salient {
		existing, sim, found, err := m.nearestSalient(ctx, vec)
		if err != nil {
			return nil, "", err
		}
		if found && sim > m.policy.DuplicateThreshold {
			return m.adjudicate(ctx, logger, content, vec, existing, sim, tags, relatedIDs)
		}
	}

	now := m.now()
	mem := Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Embedding: vec,
		Metadata: Metadata{
			Timestamp:    now,
			LastAccessed: now,
			Type:         memType,
			Summary:      summary,
			Importance:   importance,
			Version:      1,
			Salient:      true,
			Tags:         union("", tags),
		},
	}
	mem.Metadata.Relations = union(mem.ID, relatedIDs)

	if err := m.upsert(ctx, mem); err != nil {
		return nil, "", err
	}
	logger.Info().Str("id", mem.ID).Str("type", memType).Float64("importance", importance).Msg("Memory created")
	return &mem, OutcomeCreated, nil
}

// nearestSalient returns the closest salient memory to vec and its cosine
// similarity, computed locally from the stored vector.
func (m *Manager) nearestSalient(ctx context.Context, vec []float32) (Memory, float64, bool, error) {
	matches, err := m.store.Query(ctx, vectorstore.QueryRequest{
		Vector:        vec,
		TopK:          1,
		Filter:        vectorstore.Filter{keySalient: true},
		IncludeVector: true,
	})
	if err != nil {
		return Memory{}, 0, false, fmt.Errorf("duplicate search failed: %w", err)
	}

	found := m.memories(matches)
	if len(found) == 0 {
		return Memory{}, 0, false, nil
	}

	sim := matches[0].Score
	if len(found[0].Embedding) > 0 {
		sim = similarity.Cosine(vec, found[0].Embedding)
	}
	return found[0], sim, true, nil
}

// adjudicate lets the oracle decide whether incoming replaces existing. The
// incoming text never becomes a second record.
func (m *Manager) adjudicate(ctx context.Context, logger zerolog.Logger, incoming string, vec []float32, existing Memory, sim float64, tags, relatedIDs []string) (*Memory, string, error) {
	decision, err := m.oracle.Adjudicate(ctx, incoming, existing.Content)
	if err != nil {
		return nil, "", fmt.Errorf("conflict adjudication failed: %w", err)
	}

	logArbitration(logger.Info().Float64("similarity", sim), existing, decision)
	observability.RecordMemoryAudit(ctx, "arbitrate", existing.ID, verdict(decision), map[string]any{
		"similarity": sim,
		"source":     "add",
	})

	if !decision.Update {
		return nil, OutcomeDiscarded, nil
	}

	updated := existing
	updated.Content = incoming
	updated.Embedding = vec
	updated.Metadata.Summary = decision.Summary
	updated.Metadata.Salient = true
	updated.Metadata.Tags = union("", existing.Metadata.Tags, tags)
	updated.Metadata.Relations = union(existing.ID, existing.Metadata.Relations, relatedIDs)
	m.touch(&updated)

	if err := m.upsert(ctx, updated); err != nil {
		return nil, "", err
	}
	return &updated, OutcomeUpdated, nil
}

// logArbitration writes the audit event for one adjudication.
func logArbitration(event *zerolog.Event, existing Memory, decision oracle.MergeDecision) {
	event.
		Str("event", "memory_arbitration").
		Str("existing_id", existing.ID).
		Bool("update", decision.Update).
		Str("old_summary", existing.Metadata.Summary).
		Str("new_summary", decision.Summary).
		Msg("Conflict adjudicated")
}

func verdict(d oracle.MergeDecision) string {
	if d.Update {
		return "update"
	}
	return "discard"
}

// EditMemory replaces a memory's content in place. The embedding is
// regenerated when the content changes; summary and salience change only
// when given. Editing a memory into the salient state without a summary
// asks the oracle for one.
func (m *Manager) EditMemory(ctx context.Context, id, newContent string, newSummary *string, isSalient *bool) (*Memory, error) {
	ctx, op := m.begin(ctx, "edit", attribute.String("id", id))
	mem, err := m.edit(ctx, id, newContent, newSummary, isSalient)
	if err != nil {
		op.end("", err)
		if !errors.Is(err, ErrNotFound) {
			op.logger.Error().Err(err).Str("id", id).Msg("Failed to edit memory")
		}
		return nil, err
	}
	op.end(OutcomeUpdated, nil)
	return mem, nil
}

func (m *Manager) edit(ctx context.Context, id, newContent string, newSummary *string, isSalient *bool) (*Memory, error) {
	if newContent == "" {
		return nil, errors.New("content is required")
	}

	existing, err := m.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	mem := *existing

	if newContent != mem.Content || len(mem.Embedding) == 0 {
		vec, err := m.embed(ctx, newContent)
		if err != nil {
			return nil, err
		}
		mem.Embedding = vec
	}
	mem.Content = newContent

	if newSummary != nil {
		mem.Metadata.Summary = *newSummary
	}
	if isSalient != nil {
		mem.Metadata.Salient = *isSalient
	}
	if mem.Metadata.Salient && mem.Metadata.Summary == "" {
		summary, err := m.oracle.Summarize(ctx, newContent)
		if err != nil {
			return nil, fmt.Errorf("summarization failed: %w", err)
		}
		mem.Metadata.Summary = summary
	}
	m.touch(&mem)

	if err := m.upsert(ctx, mem); err != nil {
		return nil, err
	}
	return &mem, nil
}

// DeleteMemory removes a memory. Unknown ids are not an error.
func (m *Manager) DeleteMemory(ctx context.Context, id string) error {
	ctx, op := m.begin(ctx, "delete", attribute.String("id", id))

	err := m.store.Delete(ctx, []string{id})
	if err != nil {
		err = fmt.Errorf("failed to delete memory %s: %w", id, err)
		op.logger.Error().Err(err).Msg("Failed to delete memory")
	} else {
		observability.RecordMemoryAudit(ctx, "delete", id, "success", nil)
	}
	op.end("deleted", err)
	return err
}
