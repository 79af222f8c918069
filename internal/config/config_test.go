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

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults fill missing keys", func(t *testing.T) {
		// Given: a config with only the log level
		path := writeConfig(t, "log-level: debug\n")

		// When: it is loaded
		conf, err := Load(path)

		// Then: everything else has its default
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, 500*time.Millisecond, conf.ThinkingDelay)
		assert.Equal(t, StorageMemory, conf.Storage)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, 24*time.Hour, conf.Redis.TTL)
		assert.Equal(t, "breakgame.db", conf.SQLiteStoragePath)
		assert.Zero(t, conf.RandomSeed)
	})

	t.Run("File values", func(t *testing.T) {
		path := writeConfig(t, `
http-port: "8080"
thinking-delay: 250ms
storage: redis
redis:
  host: cache
  port: "6380"
random-seed: 42
`)

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "8080", conf.HTTPPort)
		assert.Equal(t, 250*time.Millisecond, conf.ThinkingDelay)
		assert.Equal(t, StorageRedis, conf.Storage)
		assert.Equal(t, "cache:6380", conf.Redis.GetRedisAddr())
		assert.Equal(t, int64(42), conf.RandomSeed)
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		// Given: a port in the file and another in the environment
		path := writeConfig(t, "http-port: \"8080\"\n")
		t.Setenv("HTTP_PORT", "7070")

		// When: it is loaded
		conf, err := Load(path)

		// Then: the environment wins
		require.NoError(t, err)
		assert.Equal(t, "7070", conf.HTTPPort)
	})

	t.Run("Unknown storage", func(t *testing.T) {
		path := writeConfig(t, "storage: postgres\n")

		_, err := Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres")
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		require.Error(t, err)
	})
}

func TestMustLoad(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "absent.yml"))
	})
}
