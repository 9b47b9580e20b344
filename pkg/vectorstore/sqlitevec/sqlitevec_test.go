package sqlitevec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/recall/pkg/vectorstore"
	"github.com/harun/recall/pkg/vectorstore/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dir, namespace string) *Store {
	t.Helper()
	s, err := New(Config{
		DBPath:    filepath.Join(dir, "vectors.db"),
		Namespace: namespace,
		Dimension: storetest.Dimension,
		Logger:    zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		return newTestStore(t, t.TempDir(), "test")
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "empty db path", config: Config{Namespace: "n", Dimension: 4}},
		{name: "empty namespace", config: Config{DBPath: "/tmp/x.db", Dimension: 4}},
		{name: "zero dimension", config: Config{DBPath: "/tmp/x.db", Namespace: "n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.config)
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestNamespaceIsolation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := newTestStore(t, dir, "alice")
	b := newTestStore(t, dir, "bob")

	require.NoError(t, a.Upsert(ctx, []vectorstore.Record{
		{ID: "m1", Vector: []float32{1, 0, 0, 0}, Content: "alice fact"},
	}))

	matches, err := b.Query(ctx, vectorstore.QueryRequest{Vector: []float32{1, 0, 0, 0}, TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, matches)

	records, err := a.Fetch(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFilterClause(t *testing.T) {
	where, args, err := filterClause(vectorstore.Filter{"type": "x", "salient": true, "tags": []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t,
		" AND json_extract(r.metadata, ?) = ? AND json_extract(r.metadata, ?) = json(?) AND json_extract(r.metadata, ?) = ?",
		where)
	assert.Equal(t, []any{`$."salient"`, 1, `$."tags"`, `["a"]`, `$."type"`, "x"}, args)

	_, _, err = filterClause(vectorstore.Filter{`bad"key`: 1})
	assert.Error(t, err)
}
