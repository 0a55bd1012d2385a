package config

import (
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("MIGRATIONS_PATH", "")
	t.Setenv("LOG_LEVEL", "")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "heats.db", c.DatabasePath)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "file://migrations", c.MigrationsPath)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DATABASE_PATH", " /var/lib/heats/heats.db ")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/heats/heats.db", c.DatabasePath)
	assert.Equal(t, "127.0.0.1:9000", c.HTTPAddr)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)

	t.Setenv("LOG_LEVEL", "chatty")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("LOG_LEVEL", "")

	c, err := FromEnv()
	require.NoError(t, err)

	flagSet := pflag.NewFlagSet("web", pflag.ContinueOnError)
	c.AddFlags(flagSet)
	require.NoError(t, flagSet.Parse([]string{"--addr", ":9090", "--log-level", "warn"}))

	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, slog.LevelWarn, c.LogLevel)
	assert.Equal(t, "heats.db", c.DatabasePath)
}
