package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	meta, err := Normalize(map[string]any{
		"salient":    true,
		"type":       "conversation",
		"importance": 0.5,
		"version":    1,
		"tags":       []string{"a"},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty", filter: nil, want: true},
		{name: "bool", filter: Filter{"salient": true}, want: true},
		{name: "bool mismatch", filter: Filter{"salient": false}, want: false},
		{name: "int vs float", filter: Filter{"version": 1.0}, want: true},
		{name: "conjunction", filter: Filter{"salient": true, "type": "conversation"}, want: true},
		{name: "missing key", filter: Filter{"owner": "x"}, want: false},
		{name: "slice", filter: Filter{"tags": []string{"a"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(meta))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Record{ID: "a", Vector: []float32{1, 2}}, 2))
	assert.ErrorIs(t, Validate(Record{ID: "a", Vector: []float32{1}}, 2), ErrDimensionMismatch)
	assert.Error(t, Validate(Record{Vector: []float32{1, 2}}, 2))

	assert.ErrorIs(t, ValidateQuery(QueryRequest{Vector: []float32{1, 2}}, 2), ErrInvalidTopK)
	assert.ErrorIs(t, ValidateQuery(QueryRequest{Vector: []float32{1}, TopK: 1}, 2), ErrDimensionMismatch)
}

func TestNormalize(t *testing.T) {
	out, err := Normalize(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Normalize(map[string]any{"n": 3, "s": []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out["n"])
	assert.Equal(t, []any{"x"}, out["s"])
}
