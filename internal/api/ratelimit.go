package api

import (
	"context"

	"golang.org/x/time/rate"
)

// Default token bucket parameters, matching the venue's basic tier.
const (
	DefaultRateLimit = 10.0
	DefaultBurst     = 10
)

// RateLimiter blocks until a request may be sent.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewRateLimiter returns a token bucket refilling at perSecond tokens per
// second with the given burst. A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
