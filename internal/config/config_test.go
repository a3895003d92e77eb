package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.3, cfg.Retrieval.Threshold)
	assert.Equal(t, "VND", cfg.Retrieval.Currency)
	assert.Equal(t, 3, cfg.Summarizer.MaxSentences)
	assert.Equal(t, "menu.json", cfg.Menu.Path)
	assert.False(t, cfg.Embedder.Cache.Enabled)
	assert.NotEmpty(t, cfg.Embedder.Cache.Path)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
menu:
  path: data/menu.txt
embedder:
  type: openai
  openai:
    model: custom-embed
retrieval:
  threshold: 0.25
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data/menu.txt", cfg.Menu.Path)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "custom-embed", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
	assert.Equal(t, 0.25, cfg.Retrieval.Threshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadOllamaDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: ollama\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Ollama.Model)
	assert.Equal(t, 30, cfg.Embedder.Ollama.TimeoutSecs)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("menu: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.Currency = "USD"
	cfg.Embedder.Cache.Enabled = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "menurag", "config.yaml"), path)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
