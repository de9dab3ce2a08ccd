package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolgate/engine"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TOOLGATE_ADDR", "TOOLGATE_MODEL", "OPENAI_BASE_URL", "OPENAI_API_KEY",
		"TOOLGATE_MAX_ROUNDS", "TOOLGATE_TOOL_TIMEOUT", "TOOLGATE_TOOL_RETRIES",
		"TOOLGATE_TOOL_CONCURRENCY", "TOOLGATE_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Engine.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.Engine.ToolTimeout)
	assert.Equal(t, 2, cfg.Engine.ToolRetries)
	assert.Equal(t, 4, cfg.Engine.ToolConcurrency)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOOLGATE_ADDR", ":9999")
	t.Setenv("TOOLGATE_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8000/v1")
	t.Setenv("TOOLGATE_MAX_ROUNDS", "3")
	t.Setenv("TOOLGATE_TOOL_TIMEOUT", "5s")
	t.Setenv("TOOLGATE_TOOL_RETRIES", "0")
	t.Setenv("TOOLGATE_TOOL_CONCURRENCY", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "http://localhost:8000/v1", cfg.BaseURL)
	assert.Equal(t, 3, cfg.Engine.MaxRounds)
	assert.Equal(t, 5*time.Second, cfg.Engine.ToolTimeout)
	assert.Equal(t, engine.NoRetries, cfg.Engine.ToolRetries, "explicit zero disables retries")
	assert.Equal(t, 1, cfg.Engine.ToolConcurrency)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TOOLGATE_MAX_ROUNDS", "lots")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("TOOLGATE_MAX_ROUNDS", "0")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("TOOLGATE_MAX_ROUNDS", "")
	t.Setenv("TOOLGATE_TOOL_TIMEOUT", "sometime")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("TOOLGATE_TOOL_TIMEOUT", "")
	t.Setenv("TOOLGATE_TOOL_RETRIES", "-1")
	_, err = Load()
	require.Error(t, err)
}
