package config

import "time"

// Config is the root configuration for the tracker.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	KeyID          string        `yaml:"key_id"`           // KALSHI-ACCESS-KEY header
	PrivateKey     string        `yaml:"private_key"`      // inline PEM, wins over the path
	PrivateKeyPath string        `yaml:"private_key_path"` // RSA or EC private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second
	Burst          int           `yaml:"burst"`
	Retry          RetryConfig   `yaml:"retry"`
	PageSize       int           `yaml:"page_size"`
}

// RetryConfig controls backoff for transient venue failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
}

// DatabaseConfig selects and configures the local store.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	Path     string         `yaml:"path"`   // sqlite file
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds a single PostgreSQL connection.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SchedulerConfig holds background task settings.
type SchedulerConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	SyncInterval     time.Duration `yaml:"sync_interval"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
}

// AnalyticsConfig holds reporting settings.
type AnalyticsConfig struct {
	Timezone string `yaml:"timezone"` // IANA name used for day boundaries
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Redacted returns a copy with secrets masked, safe to log.
func (c Config) Redacted() Config {
	out := c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	if out.API.PrivateKey != "" {
		out.API.PrivateKey = redactedValue
	}
	if out.Database.Postgres.Password != "" {
		out.Database.Postgres.Password = redactedValue
	}
	if out.Database.Postgres.DSN != "" {
		out.Database.Postgres.DSN = redactedValue
	}
	return out
}

const redactedValue = "[REDACTED]"
