package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/auth"
)

// RequestSigner produces authentication headers for a request path.
type RequestSigner interface {
	SignRequest(method, path string) (auth.Headers, error)
}

// Observer receives per-request telemetry.
type Observer interface {
	ObserveRequest(path string, status int, d time.Duration)
	ObserveRetry(path string)
}

// Client provides access to the Kalshi REST API.
type Client struct {
	baseURL    string
	pathPrefix string // path component of baseURL, included in signatures
	signer     RequestSigner
	httpClient *http.Client
	limiter    RateLimiter
	observer   Observer
	logger     *slog.Logger

	retry RetryPolicy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. A nil signer sends
// unauthenticated requests, which only public endpoints accept.
func NewClient(baseURL string, signer RequestSigner, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	var prefix string
	if u, err := url.Parse(baseURL); err == nil {
		prefix = u.Path
	}

	c := &Client{
		baseURL:    baseURL,
		pathPrefix: prefix,
		signer:     signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: NewRateLimiter(DefaultRateLimit, DefaultBurst),
		logger:  slog.Default(),
		retry:   DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the number of retries after the first attempt and the
// initial backoff, keeping the rest of the retry policy.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.MaxAttempts = max + 1
		c.retry.BaseDelay = backoff
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRateLimiter replaces the token bucket. Share one limiter between
// every client that talks to the same account.
func WithRateLimiter(l RateLimiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithObserver sets the request telemetry sink.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
