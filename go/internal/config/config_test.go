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

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("HUEMIX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 60*time.Second, cfg.Rules.RoundDuration)
	assert.Equal(t, 4, cfg.Rules.PourStep)
	assert.Equal(t, "HUEMIX_ROOMS", cfg.NATS.Bucket)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huemix.yaml")
	yml := `
log_level: debug
backend: nats
nats:
  bucket: TEST_ROOMS
rules:
  round_duration: 30s
  sudden_death: 3s
  memory_mode: false
retry:
  max_attempts: 2
client:
  key_release: 300ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("HUEMIX_CONFIG", path)
	t.Setenv("NATS_URL", "nats://nats.internal:4222")
	t.Setenv("HUEMIX_MEMORY_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendNATS, cfg.Backend)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "TEST_ROOMS", cfg.NATS.Bucket)
	assert.Equal(t, "nats://nats.internal:4222", cfg.NATSConfig().URL)
	assert.Equal(t, 30*time.Second, cfg.Rules.RoundDuration)
	assert.Equal(t, 3*time.Second, cfg.Rules.SuddenDeath)
	assert.Equal(t, 4, cfg.Rules.PourStep, "unset fields keep defaults")
	assert.True(t, cfg.Rules.MemoryMode, "env wins over file")
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.Client.KeyRelease)
	assert.Equal(t, "huemix-client.log", cfg.Client.LogFile)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("HUEMIX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HUEMIX_BACKEND", "carrier-pigeon")

	_, err := Load()
	assert.ErrorContains(t, err, "unknown backend")
}
