// ABOUTME: Tests for configuration loading
// ABOUTME: Covers YAML parsing, env var expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: http://localhost:8080
  request_timeout: 45s
chat:
  max_instances: 2
  default_model: qwen-max
  default_model_params:
    temperature: 0.7
  publish_delay: 50ms
database:
  path: /tmp/playground.db
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 2, cfg.Chat.MaxInstances)
	assert.Equal(t, "qwen-max", cfg.Chat.DefaultModel)
	assert.Equal(t, 0.7, cfg.Chat.DefaultModelParams["temperature"])
	assert.Equal(t, 50*time.Millisecond, cfg.Chat.PublishDelay)
	assert.Equal(t, "/tmp/playground.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: http://localhost:8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Chat.MaxInstances)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Zero(t, cfg.Chat.PublishDelay)
	assert.Empty(t, cfg.Database.Path)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PLAYGROUND_TEST_URL", "http://backend:9090")

	path := writeConfig(t, `
server:
  base_url: ${PLAYGROUND_TEST_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9090", cfg.Server.BaseURL)
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: ${PLAYGROUND_DEFINITELY_UNSET_VAR}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: http://localhost:8080
  request_timeout: not-a-duration
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout")
}

func TestLoad_InvalidMaxInstances(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: http://localhost:8080
chat:
  max_instances: -1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_instances")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid")

	_, err := Load(path)
	assert.Error(t, err)
}
