// Package config loads client and relay settings from an optional yaml
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/huemix/go/internal/dbconfig"
	"github.com/mcdev12/huemix/go/internal/roomstore"
	"github.com/mcdev12/huemix/go/internal/session"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Backend names a roomstore implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendNATS     Backend = "nats"
	BackendPostgres Backend = "postgres"
	BackendRelay    Backend = "relay"
)

// DefaultPath is read when HUEMIX_CONFIG is unset.
const DefaultPath = "huemix.yaml"

type Config struct {
	LogLevel    string  `yaml:"log_level"`
	Backend     Backend `yaml:"backend"`
	DisplayName string  `yaml:"display_name"`

	NATS struct {
		URL           string        `yaml:"url"`
		Bucket        string        `yaml:"bucket"`
		TTL           time.Duration `yaml:"ttl"`
		MaxReconnects int           `yaml:"max_reconnects"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
	} `yaml:"nats"`

	Database dbconfig.Config `yaml:"database"`

	Relay struct {
		URL  string `yaml:"url"`
		Port string `yaml:"port"`
	} `yaml:"relay"`

	Client struct {
		// LogFile receives logs while the full-screen UI owns the terminal.
		LogFile    string        `yaml:"log_file"`
		KeyRelease time.Duration `yaml:"key_release"`
	} `yaml:"client"`

	Retry roomstore.RetryConfig `yaml:"retry"`
	Rules session.Rules         `yaml:"rules"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{
		LogLevel:    "info",
		Backend:     BackendMemory,
		DisplayName: "Guest",
		Database:    dbconfig.Default(),
		Retry:       roomstore.DefaultRetryConfig(),
		Rules:       session.DefaultRules(),
	}
	nats := roomstore.DefaultNATSConfig()
	cfg.NATS.URL = nats.URL
	cfg.NATS.Bucket = nats.Bucket
	cfg.NATS.TTL = nats.TTL
	cfg.NATS.MaxReconnects = nats.MaxReconnects
	cfg.NATS.ReconnectWait = nats.ReconnectWait
	cfg.Relay.URL = "ws://localhost:8090/ws"
	cfg.Relay.Port = "8090"
	cfg.Client.LogFile = "huemix-client.log"
	cfg.Client.KeyRelease = 500 * time.Millisecond
	return cfg
}

// Load reads the file named by HUEMIX_CONFIG (or DefaultPath) over the
// defaults, then applies environment overrides. A missing file is fine.
func Load() (*Config, error) {
	cfg := Default()
	path := getEnv("HUEMIX_CONFIG", DefaultPath)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Backend = Backend(getEnv("HUEMIX_BACKEND", string(c.Backend)))
	c.DisplayName = getEnv("HUEMIX_NAME", c.DisplayName)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Bucket = getEnv("NATS_BUCKET", c.NATS.Bucket)
	c.NATS.MaxReconnects = getEnvAsInt("NATS_MAX_RECONNECTS", c.NATS.MaxReconnects)
	c.Relay.URL = getEnv("RELAY_URL", c.Relay.URL)
	c.Relay.Port = getEnv("RELAY_PORT", c.Relay.Port)
	c.Client.LogFile = getEnv("HUEMIX_LOG_FILE", c.Client.LogFile)
	c.Database = c.Database.WithEnv()
	c.Rules.MemoryMode = getEnvAsBool("HUEMIX_MEMORY_MODE", c.Rules.MemoryMode)
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendNATS, BackendPostgres, BackendRelay:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Rules.RoundDuration <= 0 {
		return fmt.Errorf("rules.round_duration must be positive")
	}
	if c.Rules.TickInterval <= 0 {
		return fmt.Errorf("rules.tick_interval must be positive")
	}
	if c.Rules.PourStep <= 0 {
		return fmt.Errorf("rules.pour_step must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// NATSConfig converts the nats section for roomstore.NewNATSStore.
func (c *Config) NATSConfig() roomstore.NATSConfig {
	n := roomstore.DefaultNATSConfig()
	n.URL = c.NATS.URL
	n.Bucket = c.NATS.Bucket
	n.TTL = c.NATS.TTL
	n.MaxReconnects = c.NATS.MaxReconnects
	n.ReconnectWait = c.NATS.ReconnectWait
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
