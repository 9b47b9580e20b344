package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/pkg/vectorstore"
)

func TestRecordConversion(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC)
	mem := Memory{
		ID:        "m1",
		Content:   "My name is Alex",
		Embedding: []float32{1, 0, 0, 0},
		Metadata: Metadata{
			Timestamp:    ts,
			LastAccessed: ts.Add(time.Minute),
			Type:         TypeConversation,
			Summary:      "The user is Alex",
			Importance:   0.8,
			Version:      1,
			Salient:      true,
			Tags:         []string{"name"},
		},
	}

	rec := mem.toRecord()
	assert.Equal(t, []string{}, rec.Metadata[keyRelations])

	// Simulate a backend returning JSON value form.
	md, err := vectorstore.Normalize(rec.Metadata)
	require.NoError(t, err)
	rec.Metadata = md

	back, err := fromRecord(rec)
	require.NoError(t, err)
	assert.True(t, back.Metadata.Timestamp.Equal(ts))
	assert.True(t, back.Metadata.LastAccessed.Equal(ts.Add(time.Minute)))
	assert.Equal(t, mem.Metadata.Summary, back.Metadata.Summary)
	assert.Equal(t, 0.8, back.Metadata.Importance)
	assert.Equal(t, 1, back.Metadata.Version)
	assert.True(t, back.Metadata.Salient)
	assert.Equal(t, []string{"name"}, back.Metadata.Tags)
	assert.Equal(t, []string{}, back.Metadata.Relations)
}

func TestFromRecord_Malformed(t *testing.T) {
	_, err := fromRecord(vectorstore.Record{ID: "x", Metadata: map[string]any{}})
	assert.Error(t, err)

	_, err = fromRecord(vectorstore.Record{ID: "x", Metadata: map[string]any{
		keyTimestamp:    "yesterday",
		keyLastAccessed: "2026-01-01T00:00:00Z",
	}})
	assert.Error(t, err)
}

func TestFromRecord_VersionDefaults(t *testing.T) {
	mem, err := fromRecord(vectorstore.Record{ID: "x", Metadata: map[string]any{
		keyTimestamp:    "2026-01-01T00:00:00Z",
		keyLastAccessed: "2026-01-01T00:00:00Z",
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Metadata.Version)
	assert.Equal(t, []string{}, mem.Metadata.Tags)
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, union("", []string{"a", "b"}, []string{"b", "", "c"}))
	assert.Equal(t, []string{"b"}, union("self", []string{"self", "b", "self"}))
	assert.Equal(t, []string{}, union("", nil))
}
