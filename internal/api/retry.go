package api

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how transient failures are retried.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // wait before the first retry
	Multiplier  float64       // growth factor between retries
	MaxDelay    time.Duration // cap on any single wait
	Jitter      float64       // 0..1, fraction of the delay randomized
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Jitter:      0.5,
	}
}

// Backoff returns the wait before retry number n (1 for the first retry).
// With Jitter j the result is uniformly distributed in [d(1-j), d(1+j)).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	j := min(max(p.Jitter, 0), 1)
	if j > 0 && d > 0 {
		spread := 2 * j * d
		d = d*(1-j) + rand.Float64()*spread
	}

	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
