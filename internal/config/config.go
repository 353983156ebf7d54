// Package config provides typed application configuration decoded from
// viper state. Validation is eager: a bad policy table is fatal at startup
// and never surfaces at request time.
package config

import (
	"fmt"
	"time"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
	"github.com/edgegate/edgegate/internal/core/requestlog"
	"github.com/edgegate/edgegate/internal/core/store"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Store     StoreConfig       `mapstructure:"store"`
	RateLimit RateLimitConfig   `mapstructure:"ratelimit"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
	Requests  requestlog.Config `mapstructure:"requests"`
	Logging   LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the shared counter store backend.
type StoreConfig struct {
	// Backend is "redis" in production; "memory" is for local development
	// only and cannot enforce limits across instances.
	Backend string            `mapstructure:"backend"`
	Redis   store.RedisConfig `mapstructure:"redis"`
}

// RateLimitConfig contains the policy table and admission-path store timeout.
type RateLimitConfig struct {
	StoreTimeout time.Duration      `mapstructure:"store_timeout"`
	Policies     ratelimit.Policies `mapstructure:"policies"`
}

// TelemetryConfig contains rollup write settings.
type TelemetryConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Validate rejects unusable configuration. Called once at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required for the redis backend")
	}

	if err := c.RateLimit.Policies.Validate(); err != nil {
		return fmt.Errorf("ratelimit: %w", err)
	}

	return nil
}
