package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/internal/config"
	"github.com/harun/recall/internal/tracing"
)

func TestInitTracingWritesTraceFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.File = filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	require.NoError(t, initTracing(cfg))
	_, span := tracing.StartSpan(context.Background(), "recall/cli", "memory.get")
	span.End()
	require.NoError(t, tracing.ShutdownOpenTelemetry(context.Background()))

	data, err := os.ReadFile(cfg.Tracing.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"memory.get"`)
}

func TestInitTracingDisabledWritesNothing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tracing.File = filepath.Join(t.TempDir(), "traces.jsonl")

	require.NoError(t, initTracing(cfg))
	_, span := tracing.StartSpan(context.Background(), "recall/cli", "memory.get")
	span.End()
	require.NoError(t, tracing.ShutdownOpenTelemetry(context.Background()))

	_, err := os.Stat(cfg.Tracing.File)
	assert.True(t, os.IsNotExist(err))
}
