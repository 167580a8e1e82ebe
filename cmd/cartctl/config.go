package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	backendMemory = "memory"
	backendSQLite = "sqlite"
	backendNATS   = "nats"
	backendRedis  = "redis"
)

var validBackends = []string{backendMemory, backendSQLite, backendNATS, backendRedis}

// Config is the cartctl configuration. Values are resolved in order:
// defaults, YAML file, environment, flags.
type Config struct {
	Backend  string `yaml:"backend"`
	LogLevel string `yaml:"log_level"`
	// Retries is the number of times a command is decided again after losing
	// a race for the same cart.
	Retries int `yaml:"retries"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	NATS   NATSConfig   `yaml:"nats"`
	Redis  RedisConfig  `yaml:"redis"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	StreamName    string `yaml:"stream_name"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

func DefaultConfig() Config {
	return Config{
		Backend:  backendSQLite,
		LogLevel: "warn",
		Retries:  3,
		SQLite:   SQLiteConfig{Path: "cartes.db"},
	}
}

// LoadConfig reads the YAML file at path over the defaults and applies the
// environment. An empty path skips the file.
func LoadConfig(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decodeConfig(bytes.NewReader(raw), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeConfig(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	if lookupEnv == nil {
		return nil
	}
	set := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set("CARTCTL_BACKEND", &c.Backend)
	set("CARTCTL_LOG_LEVEL", &c.LogLevel)
	set("CARTCTL_SQLITE_PATH", &c.SQLite.Path)
	set("NATS_URL", &c.NATS.URL)
	set("REDIS_ADDR", &c.Redis.Addr)

	if v, ok := lookupEnv("CARTCTL_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CARTCTL_RETRIES: %w", err)
		}
		c.Retries = n
	}
	return nil
}

func (c Config) Validate() error {
	if !slices.Contains(validBackends, c.Backend) {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Backend, validBackends)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.Backend == backendSQLite && c.SQLite.Path == "" {
		return errors.New("sqlite.path is required")
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
