package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.AI.BaseURL)
	assert.Equal(t, "anthropic/claude-3.5-haiku", cfg.AI.PrimaryModel)
	assert.Equal(t, 800, cfg.AI.ThinkingDelayMs)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 20, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 60, cfg.RateLimit.WindowSeconds)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, 30, cfg.Session.ResumeMinutes)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9999
  bind: lan
  allowedOrigins:
    - https://training.example.com
ai:
  apiKey: sk-test
  primaryModel: anthropic/claude-3.5-haiku
  fallbackModels:
    - anthropic/claude-3.5-sonnet
  maxTokens: 2048
  thinkingDelayMs: 400
ratelimit:
  backend: redis
  maxRequests: 10
  windowSeconds: 30
  redis:
    addr: localhost:6379
session:
  store: memory
  resumeMinutes: 15
logging:
  level: debug
  consoleStyle: json
scenarios:
  seedFile: /etc/elicit/scenarios.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, []string{"https://training.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, []string{"anthropic/claude-3.5-sonnet"}, cfg.AI.FallbackModels)
	assert.Equal(t, 2048, cfg.AI.MaxTokens)
	assert.Equal(t, 400, cfg.AI.ThinkingDelayMs)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.Redis.Addr)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 15, cfg.Session.ResumeMinutes)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.Equal(t, "/etc/elicit/scenarios.yaml", cfg.Scenarios.SeedFile)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 800, cfg.AI.ThinkingDelayMs)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ELICIT_SERVER_PORT", "12345")
	t.Setenv("ELICIT_API_KEY", "sk-env")
	t.Setenv("ELICIT_LOG_LEVEL", "TRACE")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Server.Port)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, "trace", cfg.Logging.Level)
}

func TestLoadRedisEnvSelectsBackend(t *testing.T) {
	t.Setenv("ELICIT_REDIS_ADDR", "redis:6379")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, "redis:6379", cfg.RateLimit.Redis.Addr)
}

func TestExpandSensitiveFields(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-expanded")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  apiKey: ${TEST_API_KEY}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-expanded", cfg.AI.APIKey)
}

func TestExpandEnvVars_UnsetLeftIntact(t *testing.T) {
	assert.Equal(t, "${DEFINITELY_NOT_SET_XYZ}", expandEnvVars("${DEFINITELY_NOT_SET_XYZ}"))
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"server": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"server", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}
