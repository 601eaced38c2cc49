package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SandboxConfig holds isolation configuration.
type SandboxConfig struct {
	// Mode selects the default isolation strategy for newly registered
	// micro-apps: "multiplexed" or "diffing".
	Mode string `envconfig:"SANDBOX_MODE" default:"multiplexed"`
	// Singular restricts mounting to one micro-app at a time.
	Singular bool `envconfig:"SANDBOX_SINGULAR" default:"false"`
	// Whitelist lists global names whose writes pass straight through to
	// the host global.
	Whitelist []string `envconfig:"SANDBOX_WHITELIST" default:"System,__cjsWrapper"`
	// EagerRestore restores whitelisted globals on every deactivation
	// instead of waiting for the last active sandbox to exit.
	EagerRestore bool `envconfig:"SANDBOX_EAGER_RESTORE" default:"false"`
	// FetchTimeout bounds the host fetch primitive.
	FetchTimeout time.Duration `envconfig:"SANDBOX_FETCH_TIMEOUT" default:"10s"`
	// LocationHref seeds the host location object.
	LocationHref string `envconfig:"SANDBOX_LOCATION" default:"http://localhost/"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Sandbox: SandboxConfig{
			Mode:         "multiplexed",
			Singular:     false,
			Whitelist:    []string{"System", "__cjsWrapper"},
			EagerRestore: false,
			FetchTimeout: 10 * time.Second,
			LocationHref: "http://localhost/",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
