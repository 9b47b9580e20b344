// Package storetest is a conformance suite every vectorstore backend runs
// from its own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/harun/recall/pkg/similarity"
	"github.com/harun/recall/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dimension is the vector width the suite uses.
const Dimension = 4

// Factory returns an empty store of width Dimension.
type Factory func(t *testing.T) vectorstore.Store

func vec(xs ...float32) []float32 {
	return similarity.Normalize(xs)
}

func seed(t *testing.T, s vectorstore.Store) {
	t.Helper()
	err := s.Upsert(context.Background(), []vectorstore.Record{
		{ID: "a", Vector: vec(1, 0, 0, 0), Content: "alpha", Metadata: map[string]any{"salient": true, "type": "conversation", "tags": []string{"x"}}},
		{ID: "b", Vector: vec(0.9, 0.1, 0, 0), Content: "beta", Metadata: map[string]any{"salient": false, "type": "conversation"}},
		{ID: "c", Vector: vec(0, 1, 0, 0), Content: "gamma", Metadata: map[string]any{"salient": true, "type": "important", "importance": 0.7}},
	})
	require.NoError(t, err)
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("query empty store", func(t *testing.T) {
		s := newStore(t)
		matches, err := s.Query(ctx, vectorstore.QueryRequest{Vector: vec(1, 0, 0, 0), TopK: 3})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("query orders by similarity", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		matches, err := s.Query(ctx, vectorstore.QueryRequest{Vector: vec(1, 0, 0, 0), TopK: 10, IncludeVector: true})
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, "b", matches[1].ID)
		assert.Equal(t, "c", matches[2].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
		assert.Len(t, matches[0].Vector, Dimension)
		assert.Equal(t, "alpha", matches[0].Content)
	})

	t.Run("query respects topK and filter", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		matches, err := s.Query(ctx, vectorstore.QueryRequest{
			Vector: vec(1, 0, 0, 0),
			TopK:   1,
			Filter: vectorstore.Filter{"salient": true},
		})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, true, matches[0].Metadata["salient"])

		matches, err = s.Query(ctx, vectorstore.QueryRequest{
			Vector: vec(1, 0, 0, 0),
			TopK:   5,
			Filter: vectorstore.Filter{"salient": true, "type": "important"},
		})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "c", matches[0].ID)
		assert.Equal(t, 0.7, matches[0].Metadata["importance"])
	})

	t.Run("metadata round trip", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		records, err := s.Fetch(ctx, []string{"a", "missing"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, []any{"x"}, records[0].Metadata["tags"])
		assert.Equal(t, "conversation", records[0].Metadata["type"])
		assert.Len(t, records[0].Vector, Dimension)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		err := s.Upsert(ctx, []vectorstore.Record{
			{ID: "a", Vector: vec(0, 0, 1, 0), Content: "alpha2", Metadata: map[string]any{"salient": true}},
		})
		require.NoError(t, err)

		records, err := s.Fetch(ctx, []string{"a"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "alpha2", records[0].Content)
		assert.InDelta(t, 1.0, similarity.Cosine(records[0].Vector, vec(0, 0, 1, 0)), 1e-4)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		require.NoError(t, s.Delete(ctx, []string{"a", "missing"}))
		records, err := s.Fetch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "b", records[0].ID)

		require.NoError(t, s.Delete(ctx, nil))
	})

	t.Run("dimension checks", func(t *testing.T) {
		s := newStore(t)
		assert.Equal(t, Dimension, s.Dimension())

		err := s.Upsert(ctx, []vectorstore.Record{{ID: "x", Vector: []float32{1}}})
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

		_, err = s.Query(ctx, vectorstore.QueryRequest{Vector: []float32{1}, TopK: 1})
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

		_, err = s.Query(ctx, vectorstore.QueryRequest{Vector: vec(1, 0, 0, 0)})
		assert.ErrorIs(t, err, vectorstore.ErrInvalidTopK)
	})
}
