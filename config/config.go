// Package config provides configuration loading for the daily reflections server.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// DAILY_* environment variables. See Load.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap/zapcore"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Auth    AuthConfig    `koanf:"auth"`
	Log     LogConfig     `koanf:"log"`
	Clock   ClockConfig   `koanf:"clock"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StorageConfig selects and configures the reflection store.
type StorageConfig struct {
	Driver string `koanf:"driver"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN     string        `koanf:"dsn"`
	Timeout time.Duration `koanf:"timeout"`
}

// AuthConfig holds bearer token validation settings.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | console
}

// ClockConfig controls day bucket resolution.
type ClockConfig struct {
	// Timezone is an IANA name. Empty means the server's local zone.
	Timezone string `koanf:"timezone"`
}

// Location resolves Timezone.
func (c ClockConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// minSecretLength is the HS256 key size in bytes.
const minSecretLength = 32

// Validate validates the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be one of sqlite, postgres, memory, got %q", c.Storage.Driver))
	}
	if c.Storage.Timeout < 0 {
		errs = append(errs, errors.New("storage.timeout must not be negative"))
	}

	if len(c.Auth.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	if _, err := c.Clock.Location(); err != nil {
		errs = append(errs, fmt.Errorf("clock.timezone: %w", err))
	}

	return errors.Join(errs...)
}
