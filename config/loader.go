package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "DAILY_"

// EnvConfigPath names the YAML file when no path is passed to Load.
const EnvConfigPath = EnvPrefix + "CONFIG"

//go:embed defaults.yaml
var defaults []byte

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (DAILY_SERVER_PORT, DAILY_STORAGE_DSN, ...)
//  2. YAML file at configPath, or $DAILY_CONFIG when configPath is empty
//  3. Built-in defaults (defaults.yaml)
//
// Environment keys split on the first underscore after the prefix only:
//
//	DAILY_SERVER_PORT         -> server.port
//	DAILY_SERVER_READ_TIMEOUT -> server.read_timeout
//	DAILY_AUTH_JWT_SECRET     -> auth.jwt_secret
//
// List values (server.cors_origins) accept comma-separated strings.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps DAILY_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}
