// Package config loads client settings from a config file and prefixed
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPrefix is the environment variable prefix used by the CLI.
const DefaultPrefix = "FTQ_"

// Config holds the connection and execution settings.
type Config struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Cursor CursorConfig `mapstructure:"cursor"`
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Protocol int    `mapstructure:"protocol"`
}

type CursorConfig struct {
	Count int `mapstructure:"count"` // Records per cursor read.
}

type SearchConfig struct {
	Limit int `mapstructure:"limit"` // Page size when a search sets none.
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.protocol", 2)
	v.SetDefault("cursor.count", 1000)
	v.SetDefault("search.limit", 10)
	v.SetDefault("log.level", "info")
}

// Load reads configuration into target.
// prefix: Environment variable prefix (e.g. "FTQ_")
// file: Optional config file; ".env" in the working directory when empty.
//
// FTQ_REDIS_ADDR sets redis.addr, FTQ_CURSOR_COUNT sets cursor.count, and so
// on. Environment variables take precedence over the file.
func Load(prefix, file string, target *Config) error {
	v := viper.New()
	setDefaults(v)

	explicit := file != ""
	if !explicit {
		file = ".env"
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		key, value, found := strings.Cut(envStr, "=")
		if !found || !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		// FTQ_REDIS_ADDR -> redis.addr
		propKey := strings.TrimPrefix(key, prefixUpper)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
		propKey = strings.TrimPrefix(propKey, ".")
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return target.Validate()
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.Protocol != 2 && c.Redis.Protocol != 3 {
		return fmt.Errorf("redis.protocol must be 2 or 3, got %d", c.Redis.Protocol)
	}
	if c.Cursor.Count <= 0 {
		return fmt.Errorf("cursor.count must be positive, got %d", c.Cursor.Count)
	}
	if c.Search.Limit < 0 {
		return fmt.Errorf("search.limit cannot be negative, got %d", c.Search.Limit)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Logger builds a production zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
