package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation without system zoneinfo
)

// Validate checks that all required fields are set and values are valid.
// Credentials are not required here: commands that only read the local
// store run without them.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must be >= 0")
	}
	if c.API.Burst < 1 {
		return errors.New("api.burst must be >= 1")
	}
	if c.API.PageSize < 1 || c.API.PageSize > 1000 {
		return fmt.Errorf("api.page_size must be between 1 and 1000, got %d", c.API.PageSize)
	}
	if err := c.API.Retry.validate("api.retry"); err != nil {
		return err
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	if c.Scheduler.SnapshotInterval <= 0 {
		return errors.New("scheduler.snapshot_interval must be > 0")
	}
	if c.Scheduler.SyncInterval <= 0 {
		return errors.New("scheduler.sync_interval must be > 0")
	}
	if c.Scheduler.RunTimeout <= 0 {
		return errors.New("scheduler.run_timeout must be > 0")
	}

	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("analytics.timezone %q: %w", c.Analytics.Timezone, err)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (r *RetryConfig) validate(prefix string) error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("%s.max_attempts must be >= 1", prefix)
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 {
		return fmt.Errorf("%s delays must be >= 0", prefix)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("%s.max_delay (%v) cannot be less than base_delay (%v)", prefix, r.MaxDelay, r.BaseDelay)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be >= 1", prefix)
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		return fmt.Errorf("%s.jitter must be between 0 and 1", prefix)
	}
	return nil
}

func (db *PostgresConfig) validate(prefix string) error {
	if db.DSN == "" {
		if db.Host == "" {
			return fmt.Errorf("%s.host is required", prefix)
		}
		if db.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if db.User == "" {
			return fmt.Errorf("%s.user is required", prefix)
		}
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
