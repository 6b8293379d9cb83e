package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAPIKeyID       = "KALSHI_API_KEY_ID"
	EnvPrivateKey     = "KALSHI_PRIVATE_KEY"
	EnvPrivateKeyPath = "KALSHI_PRIVATE_KEY_PATH"
	EnvBaseURL        = "KALSHI_BASE_URL"
	EnvDriver         = "TRACKER_DATABASE_DRIVER"
	EnvDatabasePath   = "TRACKER_DATABASE_PATH"
	EnvDatabaseDSN    = "TRACKER_DATABASE_DSN"
	EnvServerPort     = "TRACKER_SERVER_PORT"
	EnvLogLevel       = "TRACKER_LOG_LEVEL"
)

// Load reads a YAML config file and expands environment variables.
// An empty path yields a zero Config with only env overrides applied.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.API.KeyID, EnvAPIKeyID)
	setString(&c.API.PrivateKey, EnvPrivateKey)
	setString(&c.API.PrivateKeyPath, EnvPrivateKeyPath)
	setString(&c.API.BaseURL, EnvBaseURL)
	setString(&c.Database.Driver, EnvDriver)
	setString(&c.Database.Path, EnvDatabasePath)
	setString(&c.Database.Postgres.DSN, EnvDatabaseDSN)
	setString(&c.Log.Level, EnvLogLevel)

	if v, ok := os.LookupEnv(EnvServerPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvServerPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
