package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/recall/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Nil(t, logger.file)
		assert.NoError(t, logger.Close())
	})

	t.Run("create logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "recall.log")

		logger, err := New(Config{Level: "debug", File: logFile, MaxSize: 1})
		require.NoError(t, err)

		logger.Info().Str("memory_id", "m-1").Msg("Memory created")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"memory_id":"m-1"`)
	})

	t.Run("redacts keys in file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "recall.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		logger.Info().Str("content", "my key is sk-abcdefghijklmnopqrstuvwxyz012345").Msg("Adding memory")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "[REDACTED]")
		assert.NotContains(t, string(content), "sk-abcdefghij")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.Level())
	})
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LoggingConfig{
		Level:     "warn",
		File:      "/tmp/recall.log",
		MaxSize:   10,
		MaxAge:    3,
		Compress:  true,
		Redaction: true,
		Pretty:    true,
	}, true)

	assert.Equal(t, Config{
		Level:     "warn",
		File:      "/tmp/recall.log",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSize:   10,
		MaxAge:    3,
		Compress:  true,
	}, cfg)
}

func TestSetLevel(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	require.NoError(t, err)
	defer logger.Close()

	child := logger.With().Str("component", "memory").Logger()

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, zerolog.DebugLevel, logger.Level())
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.True(t, child.Debug().Enabled(), "derived loggers follow the new level")

	assert.Error(t, logger.SetLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, logger.Level())

	require.NoError(t, logger.SetLevel("warn"))
	assert.False(t, child.Info().Enabled())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}

func TestLoggerWith(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	require.NoError(t, err)
	defer logger.Close()

	child := logger.With().Str("component", "memory").Logger()
	assert.Equal(t, zerolog.TraceLevel, child.GetLevel())
}
