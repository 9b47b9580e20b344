package memory

import (
	"context"
	"fmt"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/similarity"
	"github.com/harun/recall/pkg/vectorstore"
)

// ReconcileReport summarizes one reconciliation sweep
type ReconcileReport struct {
	Examined int `json:"examined"`
	Pairs    int `json:"pairs"`
	Merged   int `json:"merged"`
}

// ResolveMemoryConflicts sweeps a batch of salient memories pairwise. For
// each pair the more recently accessed memory is the target; when the
// oracle folds the other into it, the target takes the merged summary and
// records the other in its relations, and the other stops being salient.
// A memory absorbed during the sweep takes no further part in it.
func (m *Manager) ResolveMemoryConflicts(ctx context.Context) (ReconcileReport, error) {
	ctx, op := m.begin(ctx, "reconcile")

	report, err := m.reconcile(ctx, op)
	observability.RecordReconcile(report.Pairs, report.Merged)

	outcome := "clean"
	if report.Merged > 0 {
		outcome = "merged"
	}
	op.end(outcome, err)

	if err != nil {
		op.logger.Error().Err(err).Int("merged", report.Merged).Msg("Memory reconciliation failed")
		return report, err
	}
	op.logger.Info().
		Int("examined", report.Examined).
		Int("pairs", report.Pairs).
		Int("merged", report.Merged).
		Msg("Memory reconciliation completed")
	return report, nil
}

func (m *Manager) reconcile(ctx context.Context, op *operation) (ReconcileReport, error) {
	var report ReconcileReport

	matches, err := m.store.Query(ctx, vectorstore.QueryRequest{
		Vector:        similarity.Uniform(m.store.Dimension()),
		TopK:          m.policy.ReconcileBatch,
		Filter:        vectorstore.Filter{keySalient: true},
		IncludeVector: true,
	})
	if err != nil {
		return report, fmt.Errorf("failed to load reconciliation batch: %w", err)
	}

	batch := m.memories(matches)
	report.Examined = len(batch)
	absorbed := make([]bool, len(batch))

	for i := 0; i < len(batch); i++ {
		for j := i + 1; j < len(batch); j++ {
			if absorbed[i] || absorbed[j] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			t, o := i, j
			if batch[j].Metadata.LastAccessed.After(batch[i].Metadata.LastAccessed) {
				t, o = j, i
			}
			target, other := &batch[t], &batch[o]
			report.Pairs++

			decision, err := m.oracle.Adjudicate(ctx, other.Content, target.Content)
			if err != nil {
				return report, fmt.Errorf("conflict adjudication failed: %w", err)
			}

			logArbitration(op.logger.Info().Str("incoming_id", other.ID), *target, decision)
			observability.RecordMemoryAudit(ctx, "arbitrate", target.ID, verdict(decision), map[string]any{
				"incoming_id": other.ID,
				"source":      "reconcile",
			})

			if !decision.Update {
				continue
			}

			target.Metadata.Summary = decision.Summary
			target.Metadata.Relations = union(target.ID, target.Metadata.Relations, []string{other.ID})
			m.touch(target)
			other.Metadata.Salient = false
			m.touch(other)

			if err := m.upsert(ctx, *target, *other); err != nil {
				return report, err
			}
			absorbed[o] = true
			report.Merged++
		}
	}
	return report, nil
}
