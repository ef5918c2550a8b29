// Package config loads tally's CLI settings from tally.toml, a .env file and
// TALLY_* environment variables, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds settings shared by CLI commands. Flags override these.
type Config struct {
	// DB is the journal database path.
	DB string
	// Specs is the default specs directory.
	Specs string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Environment variables that override file settings.
const (
	EnvDB       = "TALLY_DB"
	EnvSpecs    = "TALLY_SPECS"
	EnvLogLevel = "TALLY_LOG_LEVEL"
)

const (
	// DefaultPath is read when no --config is given. It may be absent.
	DefaultPath = "tally.toml"
	// DefaultEnvFile is the dotenv file loaded by LoadEnvFile("").
	DefaultEnvFile = ".env"

	defaultDB       = "tally.db"
	defaultSpecs    = "specs"
	defaultLogLevel = "info"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{DB: defaultDB, Specs: defaultSpecs, LogLevel: defaultLogLevel}
}

// Load reads the TOML file at path and applies environment overrides.
// An empty path means DefaultPath, which is allowed to be missing; an
// explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.merge(data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var raw struct {
		DB       string `toml:"db"`
		Specs    string `toml:"specs"`
		LogLevel string `toml:"log_level"`
	}
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return err
	}

	setIfPresent(&c.DB, raw.DB)
	setIfPresent(&c.Specs, raw.Specs)
	setIfPresent(&c.LogLevel, raw.LogLevel)
	return nil
}

func (c *Config) applyEnv() {
	setIfPresent(&c.DB, os.Getenv(EnvDB))
	setIfPresent(&c.Specs, os.Getenv(EnvSpecs))
	setIfPresent(&c.LogLevel, os.Getenv(EnvLogLevel))
}

func setIfPresent(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. An empty path means DefaultEnvFile; a missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}
