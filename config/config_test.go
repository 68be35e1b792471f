package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	var cfg Config
	require.NoError(t, Load("FTQTEST_", "", &cfg))

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.Protocol)
	assert.Equal(t, 1000, cfg.Cursor.Count)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FTQTEST_REDIS_ADDR", "redis:6380")
	t.Setenv("FTQTEST_REDIS_DB", "3")
	t.Setenv("FTQTEST_CURSOR_COUNT", "250")
	t.Setenv("FTQTEST_LOG_LEVEL", "debug")

	var cfg Config
	require.NoError(t, Load("FTQTEST_", "", &cfg))

	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 250, cfg.Cursor.Count)
	assert.Equal(t, "debug", cfg.Log.Level)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ftq.yaml")
	require.NoError(t, os.WriteFile(file, []byte("redis:\n  addr: cache:6379\n  protocol: 3\nsearch:\n  limit: 25\n"), 0o600))
	t.Setenv("FTQTEST_SEARCH_LIMIT", "50")

	var cfg Config
	require.NoError(t, Load("FTQTEST_", file, &cfg))

	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.Protocol)
	assert.Equal(t, 50, cfg.Search.Limit)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad protocol", map[string]string{"FTQTEST_REDIS_PROTOCOL": "4"}},
		{"zero cursor count", map[string]string{"FTQTEST_CURSOR_COUNT": "0"}},
		{"bad log level", map[string]string{"FTQTEST_LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var cfg Config
			assert.Error(t, Load("FTQTEST_", "", &cfg))
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		var cfg Config
		assert.Error(t, Load("FTQTEST_", filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
	})
}
