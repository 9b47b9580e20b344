package memory

import (
	"fmt"
	"time"

	"github.com/harun/recall/pkg/vectorstore"
)

// Memory types
const (
	TypeConversation             = "conversation"
	TypeConversationConsolidated = "conversation_consolidated"
	TypeImportant                = "important"
)

// TagConsolidated marks memories produced by consolidation
const TagConsolidated = "consolidated"

// Memory is one stored fact
type Memory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata describes a memory
type Metadata struct {
	Timestamp    time.Time `json:"timestamp"`
	LastAccessed time.Time `json:"lastAccessed"`
	Type         string    `json:"type"`
	Summary      string    `json:"summary"`
	Importance   float64   `json:"importance"`
	Version      int       `json:"version"`
	Salient      bool      `json:"salient"`
	Tags         []string  `json:"tags"`
	Relations    []string  `json:"relations"`
}

// Metadata keys as stored in the vector store
const (
	keyTimestamp    = "timestamp"
	keyLastAccessed = "lastAccessed"
	keyType         = "type"
	keySummary      = "summary"
	keyImportance   = "importance"
	keyVersion      = "version"
	keySalient      = "salient"
	keyTags         = "tags"
	keyRelations    = "relations"
)

func (m Memory) toRecord() vectorstore.Record {
	return vectorstore.Record{
		ID:      m.ID,
		Vector:  m.Embedding,
		Content: m.Content,
		Metadata: map[string]any{
			keyTimestamp:    m.Metadata.Timestamp.UTC().Format(time.RFC3339Nano),
			keyLastAccessed: m.Metadata.LastAccessed.UTC().Format(time.RFC3339Nano),
			keyType:         m.Metadata.Type,
			keySummary:      m.Metadata.Summary,
			keyImportance:   m.Metadata.Importance,
			keyVersion:      m.Metadata.Version,
			keySalient:      m.Metadata.Salient,
			keyTags:         nonNil(m.Metadata.Tags),
			keyRelations:    nonNil(m.Metadata.Relations),
		},
	}
}

func fromRecord(r vectorstore.Record) (Memory, error) {
	md := r.Metadata
	ts, err := timeField(md, keyTimestamp)
	if err != nil {
		return Memory{}, fmt.Errorf("memory %s: %w", r.ID, err)
	}
	la, err := timeField(md, keyLastAccessed)
	if err != nil {
		return Memory{}, fmt.Errorf("memory %s: %w", r.ID, err)
	}

	m := Memory{
		ID:        r.ID,
		Content:   r.Content,
		Embedding: r.Vector,
		Metadata: Metadata{
			Timestamp:    ts,
			LastAccessed: la,
			Type:         stringField(md, keyType),
			Summary:      stringField(md, keySummary),
			Importance:   floatField(md, keyImportance),
			Version:      int(floatField(md, keyVersion)),
			Salient:      boolField(md, keySalient),
			Tags:         stringsField(md, keyTags),
			Relations:    stringsField(md, keyRelations),
		},
	}
	if m.Metadata.Version == 0 {
		m.Metadata.Version = 1
	}
	return m, nil
}

func timeField(md map[string]any, key string) (time.Time, error) {
	s, ok := md[key].(string)
	if !ok || s == "" {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

func stringField(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return s
}

func floatField(md map[string]any, key string) float64 {
	switch v := md[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func boolField(md map[string]any, key string) bool {
	b, _ := md[key].(bool)
	return b
}

func stringsField(md map[string]any, key string) []string {
	switch v := md[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// union merges string sets, keeping first-seen order and dropping blanks and
// any excluded values.
func union(exclude string, sets ...[]string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, set := range sets {
		for _, s := range set {
			if s == "" || s == exclude || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
