package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

type Config struct {
	DatabasePath   string
	HTTPAddr       string
	MigrationsPath string
	LogLevel       slog.Level
}

// FromEnv reads the configuration from the environment, filling in defaults for
// anything unset.
func FromEnv() (Config, error) {
	var c Config
	c.DatabasePath = envOr("DATABASE_PATH", "heats.db")
	c.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	c.MigrationsPath = envOr("MIGRATIONS_PATH", "file://migrations")

	level, err := ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return c, err
	}
	c.LogLevel = level
	return c, nil
}

// AddFlags registers command line overrides for every field, defaulting to the
// current values.
func (c *Config) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.DatabasePath, "db", c.DatabasePath, "path to the SQLite database")
	flagSet.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	flagSet.StringVar(&c.MigrationsPath, "migrations", c.MigrationsPath, "migration source URL")
	flagSet.Var(&levelValue{&c.LogLevel}, "log-level", "log level (debug, info, warn, error)")
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// levelValue adapts slog.Level to pflag.Value.
type levelValue struct {
	level *slog.Level
}

func (v *levelValue) String() string {
	if v.level == nil {
		return slog.LevelInfo.String()
	}
	return v.level.String()
}

func (v *levelValue) Set(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*v.level = level
	return nil
}

func (v *levelValue) Type() string {
	return "level"
}
