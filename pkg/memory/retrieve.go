package memory

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/recall/pkg/similarity"
	"github.com/harun/recall/pkg/vectorstore"
)

// overfetch widens the store query when local conditions may drop hits
const overfetch = 4

// SearchCriteria combines an equality filter pushed down to the store with
// conditions checked locally. Zero values disable a condition.
type SearchCriteria struct {
	Equals        vectorstore.Filter
	Tags          []string  // all must be present
	Since         time.Time // created at or after
	Until         time.Time // created at or before
	MinImportance float64
}

func (c SearchCriteria) local() bool {
	return len(c.Tags) > 0 || !c.Since.IsZero() || !c.Until.IsZero() || c.MinImportance > 0
}

func (c SearchCriteria) accepts(mem Memory) bool {
	md := mem.Metadata
	if !c.Since.IsZero() && md.Timestamp.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && md.Timestamp.After(c.Until) {
		return false
	}
	if md.Importance < c.MinImportance {
		return false
	}
	have := make(map[string]bool, len(md.Tags))
	for _, t := range md.Tags {
		have[t] = true
	}
	for _, t := range c.Tags {
		if !have[t] {
			return false
		}
	}
	return true
}

// GetRelatedMemories returns up to limit salient memories for query, ranked
// by similarity with recency breaking near ties. Failures are logged and
// yield an empty result.
func (m *Manager) GetRelatedMemories(ctx context.Context, query string, limit int) ([]Memory, error) {
	ctx, op := m.begin(ctx, "related", attribute.Int("limit", limit))
	if strings.TrimSpace(query) == "" || limit <= 0 {
		op.end("empty", nil)
		return []Memory{}, nil
	}

	vec, err := m.embed(ctx, query)
	if err != nil {
		return m.readFailed(op, err), nil
	}

	matches, err := m.store.Query(ctx, vectorstore.QueryRequest{
		Vector:        vec,
		TopK:          limit,
		Filter:        vectorstore.Filter{keySalient: true},
		IncludeVector: true,
	})
	if err != nil {
		return m.readFailed(op, err), nil
	}

	scored := Score(vec, m.memories(matches))
	Rank(scored, m.policy.TieBand)

	out := make([]Memory, len(scored))
	for i, s := range scored {
		out[i] = s.Memory
	}
	op.end("ok", nil)
	return out, nil
}

// GetMemoriesByFilter returns up to limit memories matching filter that are
// semantically close to queryText, newest first. Salience is not required.
// A blank queryText searches with a neutral vector.
func (m *Manager) GetMemoriesByFilter(ctx context.Context, filter vectorstore.Filter, queryText string, limit int) ([]Memory, error) {
	ctx, op := m.begin(ctx, "filter", attribute.Int("limit", limit))
	out, err := m.search(ctx, queryText, SearchCriteria{Equals: filter}, limit)
	if err != nil {
		return m.readFailed(op, err), nil
	}
	op.end("ok", nil)
	return out, nil
}

// SearchMemoriesComplex is GetMemoriesByFilter with tag, time window and
// importance conditions applied after the store query.
func (m *Manager) SearchMemoriesComplex(ctx context.Context, queryText string, criteria SearchCriteria, limit int) ([]Memory, error) {
	ctx, op := m.begin(ctx, "search", attribute.Int("limit", limit))
	out, err := m.search(ctx, queryText, criteria, limit)
	if err != nil {
		return m.readFailed(op, err), nil
	}
	op.end("ok", nil)
	return out, nil
}

func (m *Manager) search(ctx context.Context, queryText string, criteria SearchCriteria, limit int) ([]Memory, error) {
	if limit <= 0 {
		return []Memory{}, nil
	}

	vec, err := m.queryVector(ctx, queryText)
	if err != nil {
		return nil, err
	}

	topK := limit
	if criteria.local() {
		topK = limit * overfetch
	}
	matches, err := m.store.Query(ctx, vectorstore.QueryRequest{
		Vector: vec,
		TopK:   topK,
		Filter: criteria.Equals,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Memory, 0, limit)
	for _, mem := range m.memories(matches) {
		if criteria.accepts(mem) {
			out = append(out, mem)
		}
	}
	SortByLastAccessed(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// queryVector embeds queryText, or returns a neutral vector when it is blank.
func (m *Manager) queryVector(ctx context.Context, queryText string) ([]float32, error) {
	if strings.TrimSpace(queryText) == "" {
		return similarity.Uniform(m.store.Dimension()), nil
	}
	return m.embed(ctx, queryText)
}

func (m *Manager) readFailed(op *operation, err error) []Memory {
	op.end("", err)
	op.logger.Warn().Err(err).Str("operation", op.name).Msg("Memory read failed, returning no results")
	return []Memory{}
}
