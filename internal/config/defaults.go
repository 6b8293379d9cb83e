package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL          = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultAPITimeout       = 30 * time.Second
	DefaultRateLimit        = 10.0
	DefaultBurst            = 10
	DefaultPageSize         = 100
	DefaultRetryAttempts    = 5
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultRetryMaxDelay    = 30 * time.Second
	DefaultRetryMultiplier  = 2.0
	DefaultRetryJitter      = 0.5
	DefaultDriver           = DriverSQLite
	DefaultDatabasePath     = "kalshi-tracker.db"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultSnapshotInterval = 60 * time.Second
	DefaultSyncInterval     = 5 * time.Minute
	DefaultRunTimeout       = 2 * time.Minute
	DefaultTimezone         = "America/New_York"
	DefaultServerPort       = 8080
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.Burst == 0 {
		c.API.Burst = DefaultBurst
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}
	applyRetryDefaults(&c.API.Retry)

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	applyPostgresDefaults(&c.Database.Postgres)

	// Scheduler defaults
	if c.Scheduler.SnapshotInterval == 0 {
		c.Scheduler.SnapshotInterval = DefaultSnapshotInterval
	}
	if c.Scheduler.SyncInterval == 0 {
		c.Scheduler.SyncInterval = DefaultSyncInterval
	}
	if c.Scheduler.RunTimeout == 0 {
		c.Scheduler.RunTimeout = DefaultRunTimeout
	}

	if c.Analytics.Timezone == "" {
		c.Analytics.Timezone = DefaultTimezone
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyRetryDefaults(r *RetryConfig) {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultRetryAttempts
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = DefaultRetryBaseDelay
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = DefaultRetryMaxDelay
	}
	if r.Multiplier == 0 {
		r.Multiplier = DefaultRetryMultiplier
	}
	if r.Jitter == 0 {
		r.Jitter = DefaultRetryJitter
	}
}

func applyPostgresDefaults(db *PostgresConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
