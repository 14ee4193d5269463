package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("PLAYGROUND_SECRET", "s3cret")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "playground", cfg.Store.Redis.Prefix)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 20, cfg.WriteLimit.Count)
	assert.Equal(t, time.Second, cfg.WriteLimit.Window)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "s3cret", cfg.Secret)
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
mode: debug
port: 9090
secret: from-file
log_level: debug
store:
  driver: redis
  redis:
    addr: redis:6379
    prefix: pg
history:
  enabled: false
write_limit:
  count: 5
  window: 2s
`)
	t.Setenv("PLAYGROUND_PORT", "7070")
	t.Setenv("PLAYGROUND_STORE_REDIS_ADDR", "other:6379")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "other:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "pg", cfg.Store.Redis.Prefix)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 5, cfg.WriteLimit.Count)
	assert.Equal(t, 2*time.Second, cfg.WriteLimit.Window)
}

func TestLoadFile_Invalid(t *testing.T) {
	_, err := LoadFile(writeFile(t, "secret: x\nstore:\n  driver: etcd\n"))
	assert.ErrorContains(t, err, "unknown store driver")

	_, err = LoadFile(writeFile(t, "port: 8080\n"))
	assert.ErrorContains(t, err, "secret")
}

func TestLoadFile_MalformedFileIsAnError(t *testing.T) {
	_, err := LoadFile(writeFile(t, "secret: x\nport: [\n"))
	assert.ErrorContains(t, err, "failed to read config")
}
