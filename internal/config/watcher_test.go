package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recall.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "info"}}`), 0644))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(NewLoader(path), zerolog.Nop(), func(cfg *Config) { changes <- cfg })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not delivered")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.json")
	w, err := NewWatcher(NewLoader(path), zerolog.Nop(), func(*Config) {})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
