package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_defaults(t *testing.T) {
	cfg, err := LoadConfig("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoadConfig_file(t *testing.T) {
	path := writeConfig(t, `
backend: nats
log_level: debug
retries: 5
nats:
  url: nats://nats.internal:4222
  stream_name: CARTS
redis:
  key_prefix: shop:es
`)

	cfg, err := LoadConfig(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, backendNATS, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)
	assert.Equal(t, "CARTS", cfg.NATS.StreamName)
	assert.Empty(t, cfg.NATS.SubjectPrefix)
	assert.Equal(t, "shop:es", cfg.Redis.KeyPrefix)
	// untouched sections keep their defaults
	assert.Equal(t, "cartes.db", cfg.SQLite.Path)
}

func TestLoadConfig_emptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_envOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend: sqlite\nsqlite:\n  path: a.db\n")

	cfg, err := LoadConfig(path, env(map[string]string{
		"CARTCTL_BACKEND":     "redis",
		"CARTCTL_SQLITE_PATH": "b.db",
		"CARTCTL_RETRIES":     "0",
		"REDIS_ADDR":          "redis:6379",
		"NATS_URL":            "",
	}))
	require.NoError(t, err)
	assert.Equal(t, backendRedis, cfg.Backend)
	assert.Equal(t, "b.db", cfg.SQLite.Path)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadConfig_errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
		require.ErrorContains(t, err, "read config")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "backnd: sqlite\n"), env(nil))
		require.ErrorContains(t, err, "backnd")
	})

	t.Run("bad retries env", func(t *testing.T) {
		_, err := LoadConfig("", env(map[string]string{"CARTCTL_RETRIES": "many"}))
		require.ErrorContains(t, err, "CARTCTL_RETRIES")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "memory", modify: func(c *Config) { c.Backend = backendMemory }},
		{name: "unknown backend", modify: func(c *Config) { c.Backend = "postgres" }, errMsg: "invalid backend"},
		{name: "bad level", modify: func(c *Config) { c.LogLevel = "loud" }, errMsg: "invalid log level"},
		{name: "negative retries", modify: func(c *Config) { c.Retries = -1 }, errMsg: "retries"},
		{name: "sqlite without path", modify: func(c *Config) { c.SQLite.Path = "" }, errMsg: "sqlite.path"},
		{
			name: "nats without sqlite path",
			modify: func(c *Config) {
				c.Backend = backendNATS
				c.SQLite.Path = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}
