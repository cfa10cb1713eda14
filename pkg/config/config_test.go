package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: test-token
llm:
  api_key: test-key
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Telegram.Token)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 800, cfg.Batch.DebounceMs)
	assert.Equal(t, 10, cfg.Batch.MaxItems)
	assert.Equal(t, 100000, cfg.Quota.DailyTokenLimit)
	assert.Equal(t, "Local", cfg.Calendar.Timezone)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: test-token
batch:
  debounce_ms: 500
  max_items: 4
quota:
  daily_token_limit: 2000
calendar:
  timezone: Europe/Berlin
database:
  use_in_memory: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Batch.DebounceMs)
	assert.Equal(t, 4, cfg.Batch.MaxItems)
	assert.Equal(t, 2000, cfg.Quota.DailyTokenLimit)
	assert.Equal(t, "Europe/Berlin", cfg.Calendar.Timezone)
	assert.True(t, cfg.Database.UseInMemory)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseDatabaseURL(t *testing.T) {
	cfg, err := parseDatabaseURL("postgres://bot:pw@db.example.com:6432/calbot")
	require.NoError(t, err)

	assert.Equal(t, "db.example.com", cfg.Host)
	assert.Equal(t, 6432, cfg.Port)
	assert.Equal(t, "bot", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, "calbot", cfg.DBName)
	assert.Equal(t, "disable", cfg.SSLMode)
}
