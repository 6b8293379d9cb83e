package postgres

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/kalshi-tracker/internal/config"
)

const applicationName = "kalshi-tracker"

// BuildConnString returns the connection URL for cfg. An explicit DSN is
// used as is.
func BuildConnString(cfg config.PostgresConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
