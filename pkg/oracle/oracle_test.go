package oracle

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/harun/recall/pkg/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers every request with reply, or fails with err.
type scriptedGenerator struct {
	reply    string
	err      error
	requests []llm.Request
}

func (g *scriptedGenerator) Generate(ctx context.Context, request llm.Request) (string, error) {
	g.requests = append(g.requests, request)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *scriptedGenerator) Provider() string {
	return "scripted"
}

func newTestOracle(t *testing.T, gen *scriptedGenerator) *Oracle {
	t.Helper()
	o, err := New(Config{
		Generator: gen,
		Logger:    zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	return o
}

func TestNew_RequiresGenerator(t *testing.T) {
	o, err := New(Config{})
	assert.Error(t, err)
	assert.Nil(t, o)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  SalienceDecision
	}{
		{
			name:  "salient fact",
			reply: `{"isSalient": true, "summary": "User's name is Alex; enjoys hiking"}`,
			want:  SalienceDecision{Salient: true, Summary: "User's name is Alex; enjoys hiking"},
		},
		{
			name:  "fenced json with prose",
			reply: "Sure!\n```json\n{\"isSalient\": true, \"summary\": \"User is vegetarian\"}\n```",
			want:  SalienceDecision{Salient: true, Summary: "User is vegetarian"},
		},
		{
			name:  "not salient drops summary",
			reply: `{"isSalient": false, "summary": "chatter"}`,
			want:  SalienceDecision{},
		},
		{
			name:  "salient without summary fails closed",
			reply: `{"isSalient": true, "summary": "  "}`,
			want:  SalienceDecision{},
		},
		{
			name:  "wrong type fails closed",
			reply: `{"isSalient": "yes", "summary": "x"}`,
			want:  SalienceDecision{},
		},
		{
			name:  "not json fails closed",
			reply: "I think this is important.",
			want:  SalienceDecision{},
		},
		{
			name:  "truncated json fails closed",
			reply: `{"isSalient": true, "summary": "User`,
			want:  SalienceDecision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{reply: tt.reply}
			o := newTestOracle(t, gen)

			got, err := o.Classify(context.Background(), "My name is Alex and I love hiking")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, gen.requests, 1)
			assert.Equal(t, classifyPrompt, gen.requests[0].SystemPrompt)
			assert.Equal(t, "My name is Alex and I love hiking", gen.requests[0].Prompt)
		})
	}
}

func TestClassify_ServiceFailure(t *testing.T) {
	cause := errors.Join(llm.ErrGeneration, errors.New("timeout"))
	o := newTestOracle(t, &scriptedGenerator{err: cause})

	_, err := o.Classify(context.Background(), "something")
	assert.ErrorIs(t, err, llm.ErrGeneration)
}

func TestAdjudicate(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  MergeDecision
	}{
		{
			name:  "update",
			reply: `{"update": true, "updatedSummary": "User goes by Alexandra; enjoys hiking"}`,
			want:  MergeDecision{Update: true, Summary: "User goes by Alexandra; enjoys hiking"},
		},
		{
			name:  "no update",
			reply: `{"update": false, "updatedSummary": ""}`,
			want:  MergeDecision{},
		},
		{
			name:  "update without summary fails closed",
			reply: `{"update": true}`,
			want:  MergeDecision{},
		},
		{
			name:  "garbage fails closed",
			reply: "update: yes",
			want:  MergeDecision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{reply: tt.reply}
			o := newTestOracle(t, gen)

			got, err := o.Adjudicate(context.Background(), "Actually I go by Alexandra now", "My name is Alex")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			prompt := gen.requests[0].Prompt
			assert.Less(t, strings.Index(prompt, "My name is Alex"), strings.Index(prompt, "Actually I go by Alexandra now"))
		})
	}
}

func TestScoreImportance(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{reply: `{"importance": 0.8}`, want: 0.8},
		{reply: `0.35`, want: 0.35},
		{reply: `Importance: 1.7`, want: 1},
		{reply: `{"importance": -2}`, want: 0},
		{reply: `very important`, want: DefaultImportance},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			o := newTestOracle(t, &scriptedGenerator{reply: tt.reply})
			got, err := o.ScoreImportance(context.Background(), "text")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	o := newTestOracle(t, &scriptedGenerator{reply: "  \"User lives in Lisbon.\"\n"})
	got, err := o.Summarize(context.Background(), "I live in Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "User lives in Lisbon.", got)

	empty := newTestOracle(t, &scriptedGenerator{reply: "   "})
	_, err = empty.Summarize(context.Background(), "I live in Lisbon")
	assert.ErrorIs(t, err, llm.ErrGeneration)
}

func TestSummarizeThread(t *testing.T) {
	gen := &scriptedGenerator{reply: "User planned a trip to Kyoto in May."}
	o := newTestOracle(t, gen)

	got, err := o.SummarizeThread(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "User planned a trip to Kyoto in May.", got)
	assert.Equal(t, "a\n\nb\n\nc", gen.requests[0].Prompt)
}

func TestExtractObject(t *testing.T) {
	doc, ok := extractObject("noise {\"a\": {\"b\": 1}} tail")
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, doc)

	_, ok = extractObject("} {")
	assert.False(t, ok)
}
