package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg, err := NewLoader(filepath.Join(tmpDir, "nonexistent.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "chromem", cfg.Store.Backend)
		assert.Equal(t, 0.8, cfg.Memory.DuplicateThreshold)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"llm": {"provider": "anthropic", "api_key": "sk-ant-test"},
			"store": {"backend": "sqlite"},
			"memory": {"duplicate_threshold": 0.85}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.LLM.Provider)
		assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)
		assert.Equal(t, "sqlite", cfg.Store.Backend)
		assert.Equal(t, 0.85, cfg.Memory.DuplicateThreshold)
		assert.Equal(t, 0.1, cfg.Memory.TieBand, "unset keys keep defaults")
		assert.Equal(t, 5, cfg.Memory.ReconcileBatch)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"data_dir": "`+tmpDir+`", "store": {"backend": "sqlite"}}`), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "recall.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(tmpDir, "audit.log"), cfg.Logging.AuditFile)
		assert.Equal(t, filepath.Join(tmpDir, "memories.db"), cfg.Store.Path)
		assert.Equal(t, filepath.Join(tmpDir, "maintenance.json"), cfg.Maintenance.StatePath)
		assert.Equal(t, filepath.Join(tmpDir, "traces.jsonl"), cfg.Tracing.File)
		assert.False(t, cfg.Tracing.Enabled)
	})

	t.Run("environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"llm": {"model": "from-file"}}`), 0644))

		t.Setenv("RECALL_LLM_MODEL", "from-env")
		t.Setenv("RECALL_MEMORY_TIE_BAND", "0.2")
		t.Setenv("RECALL_STORE_BACKEND", "postgres")
		t.Setenv("RECALL_TRACING_ENABLED", "true")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.LLM.Model)
		assert.Equal(t, 0.2, cfg.Memory.TieBand)
		assert.Equal(t, "postgres", cfg.Store.Backend)
		assert.True(t, cfg.Tracing.Enabled)
	})

	t.Run("provider key variables", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-from-openai-env")

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "none.json")).Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-from-openai-env", cfg.LLM.APIKey)
		assert.Equal(t, "sk-from-openai-env", cfg.Embedding.APIKey)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "subdir", "config.json")

		cfg := DefaultConfig()
		cfg.DataDir = tmpDir
		cfg.LLM.APIKey = "sk-saved"
		cfg.Memory.DuplicateThreshold = 0.9
		cfg.Maintenance.Schedule = "0 3 * * *"

		loader := NewLoader(configPath)
		require.NoError(t, loader.Save(cfg))

		loaded, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-saved", loaded.LLM.APIKey)
		assert.Equal(t, 0.9, loaded.Memory.DuplicateThreshold)
		assert.Equal(t, "0 3 * * *", loaded.Maintenance.Schedule)
		assert.Equal(t, tmpDir, loaded.DataDir)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/config.json")
		assert.Equal(t, "/custom/path/config.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		t.Setenv("HOME", "/home/tester")
		loader := NewLoader("")
		assert.Equal(t, filepath.Join("/home/tester", ".recall", "recall.json"), loader.GetConfigPath())
	})
}
