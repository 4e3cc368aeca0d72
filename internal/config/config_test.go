// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers env expansion, duration parsing, defaults, and required fields

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
	path := filepath.Join(t.TempDir(), "portim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9090"
database:
  path: "/var/lib/portim/portim.db"
auth:
  jwt_secret: "test-secret"
encryption:
  passphrase: "test-passphrase"
  key_salt: "deploy-1"
webhook:
  timeout: "5s"
  max_retries: 2
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "/var/lib/portim/portim.db", cfg.Database.Path)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "test-passphrase", cfg.Encryption.Passphrase)
	assert.Equal(t, "deploy-1", cfg.Encryption.KeySalt)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 2, cfg.Webhook.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "test-secret"
encryption:
  passphrase: "test-passphrase"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "portim.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("PORTIM_TEST_SECRET", "from-env")
	path := writeConfig(t, `
auth:
  jwt_secret: ${PORTIM_TEST_SECRET}
encryption:
  passphrase: "test-passphrase"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadMissingJWTSecret(t *testing.T) {
	path := writeConfig(t, `
encryption:
  passphrase: "test-passphrase"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestLoadMissingPassphrase(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "test-secret"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "passphrase")
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "test-secret"
encryption:
  passphrase: "test-passphrase"
webhook:
  timeout: "soon"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "webhook.timeout")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
