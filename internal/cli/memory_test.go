package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/internal/config"
	"github.com/harun/recall/internal/logger"
	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/embedding"
	"github.com/harun/recall/pkg/memory"
	"github.com/harun/recall/pkg/oracle"
	"github.com/harun/recall/pkg/vectorstore"
	"github.com/harun/recall/pkg/vectorstore/chromem"
)

const testDim = 64

// scriptedOracle treats greetings as not salient and discards every
// adjudication.
type scriptedOracle struct {
	mu          sync.Mutex
	adjudicated int
}

func (o *scriptedOracle) Classify(_ context.Context, text string) (oracle.SalienceDecision, error) {
	if strings.Contains(strings.ToLower(text), "weather") {
		return oracle.SalienceDecision{}, nil
	}
	return oracle.SalienceDecision{Salient: true, Summary: "fact: " + text}, nil
}

func (o *scriptedOracle) Adjudicate(_ context.Context, _, _ string) (oracle.MergeDecision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.adjudicated++
	return oracle.MergeDecision{}, nil
}

func (o *scriptedOracle) Summarize(_ context.Context, text string) (string, error) {
	return "summary: " + text, nil
}

func (o *scriptedOracle) ScoreImportance(_ context.Context, _ string) (float64, error) {
	return 0.5, nil
}

func (o *scriptedOracle) SummarizeThread(_ context.Context, contents []string) (string, error) {
	return "thread: " + strings.Join(contents, " / "), nil
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	observability.DisableAudit()

	store, err := chromem.New(chromem.Config{Namespace: "memories", Dimension: testDim})
	require.NoError(t, err)

	mgr, err := memory.NewManager(memory.Config{
		Store:    store,
		Embedder: embedding.NewMockProvider(testDim),
		Oracle:   &scriptedOracle{},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = testDim
	cfg.Maintenance.StatePath = ""
	cfg.Maintenance.MetricsAddr = "127.0.0.1:0"

	return &app{cfg: cfg, log: log, manager: mgr}
}

func useApp(t *testing.T, a *app) {
	t.Helper()
	prev := openApp
	openApp = func(context.Context, rootOptions, bool) (*app, error) { return a, nil }
	t.Cleanup(func() { openApp = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	cmd.SetArgs(args)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func decodeMemory(t *testing.T, out string) memory.Memory {
	t.Helper()
	var mem memory.Memory
	require.NoError(t, json.Unmarshal([]byte(out), &mem), out)
	return mem
}

func decodeMemories(t *testing.T, out string) []memory.Memory {
	t.Helper()
	var mems []memory.Memory
	require.NoError(t, json.Unmarshal([]byte(out), &mems), out)
	return mems
}

func TestAddAndGet(t *testing.T) {
	useApp(t, newTestApp(t))

	out, err := run(t, "add", "My sister Alex lives in Lisbon", "--tag", "family")
	require.NoError(t, err)
	added := decodeMemory(t, out)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "My sister Alex lives in Lisbon", added.Content)
	assert.Equal(t, []string{"family"}, added.Metadata.Tags)
	assert.Equal(t, "fact: My sister Alex lives in Lisbon", added.Metadata.Summary)
	assert.NotContains(t, out, "embedding")

	out, err = run(t, "get", added.ID)
	require.NoError(t, err)
	got := decodeMemory(t, out)
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, 1, got.Metadata.Version)
}

func TestAddNothingStored(t *testing.T) {
	useApp(t, newTestApp(t))

	tests := []struct {
		name string
		args []string
	}{
		{name: "trivial", args: []string{"add", "ok"}},
		{name: "not salient", args: []string{"add", "nice weather today"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, "null\n", out)
		})
	}
}

func TestGetUnknown(t *testing.T) {
	useApp(t, newTestApp(t))

	_, err := run(t, "get", "missing")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestEditCommand(t *testing.T) {
	useApp(t, newTestApp(t))

	out, err := run(t, "add", "I work at the harbour office")
	require.NoError(t, err)
	added := decodeMemory(t, out)

	out, err = run(t, "edit", added.ID, "I work at the city library", "--summary", "works at library")
	require.NoError(t, err)
	edited := decodeMemory(t, out)
	assert.Equal(t, "I work at the city library", edited.Content)
	assert.Equal(t, "works at library", edited.Metadata.Summary)
	assert.True(t, edited.Metadata.Salient)

	out, err = run(t, "edit", added.ID, "I work at the city library", "--salient=false")
	require.NoError(t, err)
	assert.False(t, decodeMemory(t, out).Metadata.Salient)
	assert.Equal(t, "works at library", decodeMemory(t, out).Metadata.Summary)
}

func TestDeleteCommand(t *testing.T) {
	useApp(t, newTestApp(t))

	out, err := run(t, "add", "My passport expires in March")
	require.NoError(t, err)
	added := decodeMemory(t, out)

	out, err = run(t, "delete", added.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deleted": ["`+added.ID+`"]}`, out)

	_, err = run(t, "get", added.ID)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestSearchCommand(t *testing.T) {
	useApp(t, newTestApp(t))

	for _, text := range []string{"I am allergic to peanuts", "My cat is called Miso", "I run every Sunday"} {
		_, err := run(t, "add", text)
		require.NoError(t, err)
	}

	out, err := run(t, "search", "I am allergic to peanuts", "--limit", "2")
	require.NoError(t, err)
	mems := decodeMemories(t, out)
	require.Len(t, mems, 2)
	assert.Equal(t, "I am allergic to peanuts", mems[0].Content)

	out, err = run(t, "search", "   ")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestFilterCommand(t *testing.T) {
	useApp(t, newTestApp(t))

	_, err := run(t, "add", "My blood type is O negative", "--type", memory.TypeImportant, "--tag", "health")
	require.NoError(t, err)
	_, err = run(t, "add", "I prefer window seats on flights", "--tag", "travel")
	require.NoError(t, err)
	_, err = run(t, "add", "I renew my gym pass every January", "--tag", "health")
	require.NoError(t, err)

	t.Run("equality filter", func(t *testing.T) {
		out, err := run(t, "filter", "--where", "type=important")
		require.NoError(t, err)
		mems := decodeMemories(t, out)
		require.Len(t, mems, 1)
		assert.Equal(t, "My blood type is O negative", mems[0].Content)
	})

	t.Run("tags are local conditions", func(t *testing.T) {
		out, err := run(t, "filter", "--where", "salient=true", "--tag", "health")
		require.NoError(t, err)
		mems := decodeMemories(t, out)
		require.Len(t, mems, 2)
		assert.Equal(t, "I renew my gym pass every January", mems[0].Content, "most recent first")
	})

	t.Run("future since excludes everything", func(t *testing.T) {
		out, err := run(t, "filter", "--since", time.Now().Add(24*time.Hour).Format(time.DateOnly))
		require.NoError(t, err)
		assert.Empty(t, decodeMemories(t, out))
	})

	t.Run("malformed where", func(t *testing.T) {
		_, err := run(t, "filter", "--where", "type")
		assert.ErrorContains(t, err, "want key=value")
	})

	t.Run("malformed since", func(t *testing.T) {
		_, err := run(t, "filter", "--since", "yesterday")
		assert.ErrorContains(t, err, "invalid time")
	})
}

func TestConsolidateCommand(t *testing.T) {
	useApp(t, newTestApp(t))

	var ids []string
	for _, text := range []string{"We planned the trip to Porto", "We booked the train for Friday", "We picked a hotel near the river"} {
		out, err := run(t, "add", text, "--tag", "trip")
		require.NoError(t, err)
		ids = append(ids, decodeMemory(t, out).ID)
	}

	out, err := run(t, "consolidate", ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, "null\n", out, "below the minimum nothing is consolidated")

	out, err = run(t, append([]string{"consolidate"}, ids...)...)
	require.NoError(t, err)
	mem := decodeMemory(t, out)
	assert.Equal(t, memory.TypeConversationConsolidated, mem.Metadata.Type)
	assert.Equal(t, 0.7, mem.Metadata.Importance)
	assert.ElementsMatch(t, []string{"trip", memory.TagConsolidated}, mem.Metadata.Tags)
	assert.ElementsMatch(t, ids, mem.Metadata.Relations)

	_, err = run(t, "consolidate", ids[0], "missing", ids[1])
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestReconcileCommand(t *testing.T) {
	useApp(t, newTestApp(t))

	for _, text := range []string{"I live in Berlin", "My manager is called Priya"} {
		_, err := run(t, "add", text)
		require.NoError(t, err)
	}

	out, err := run(t, "reconcile")
	require.NoError(t, err)
	var report memory.ReconcileReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, memory.ReconcileReport{Examined: 2, Pairs: 1, Merged: 0}, report)
}

func TestOpenAppFailure(t *testing.T) {
	prev := openApp
	openApp = func(context.Context, rootOptions, bool) (*app, error) {
		return nil, errors.New("invalid config: llm: api_key is required for provider openai")
	}
	t.Cleanup(func() { openApp = prev })

	_, err := run(t, "search", "anything")
	assert.ErrorContains(t, err, "api_key is required")
}

func TestParseWhere(t *testing.T) {
	filter, err := parseWhere([]string{"type=important", "salient=true", "version=2", "summary=a=b"})
	require.NoError(t, err)
	assert.Equal(t, vectorstore.Filter{
		"type":    "important",
		"salient": true,
		"version": 2.0,
		"summary": "a=b",
	}, filter)

	filter, err = parseWhere(nil)
	require.NoError(t, err)
	assert.Nil(t, filter)

	_, err = parseWhere([]string{"=x"})
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("2024-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ts)

	ts, err = parseTime("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ts)

	ts, err = parseTime("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}
