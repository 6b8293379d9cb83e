package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// doRequest performs a single signed HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		headers, err := c.signer.SignRequest(method, c.pathPrefix+path)
		if err != nil {
			return nil, err
		}
		headers.Apply(req.Header)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(path, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, fmt.Errorf("do request: %w", ctx.Err())
		}
		return nil, &networkError{err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.observe(path, resp.StatusCode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read response: %w", ctx.Err())
		}
		return nil, &networkError{err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr := newAPIError(resp.StatusCode, body, 0)
		return nil, &AuthenticationError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	case resp.StatusCode >= 400:
		return nil, newAPIError(resp.StatusCode, body, parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	return body, nil
}

// doWithRetry performs a request, retrying rate limits, server errors and
// network failures with exponential backoff. Every attempt, retries
// included, first waits on the rate limiter.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	maxAttempts := c.retry.attempts()

	attempt := 1
	for ; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}
		lastErr = err

		wait, retryable := c.retryDelay(err, attempt)
		if !retryable {
			return nil, err
		}
		if attempt >= maxAttempts {
			break
		}

		c.logger.Debug("retrying request",
			"attempt", attempt+1,
			"backoff", wait,
			"path", path,
			"err", err,
		)
		if c.observer != nil {
			c.observer.ObserveRetry(path)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Attempts: attempt, Err: lastErr}
	}
	return nil, &TransientNetworkError{Attempts: attempt, Err: lastErr}
}

// retryDelay decides whether err is retryable and how long to wait first.
func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	var netErr *networkError
	if errors.As(err, &netErr) {
		return c.retry.Backoff(attempt), true
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
		return 0, false
	}
	if apiErr.RetryAfter > 0 {
		wait := apiErr.RetryAfter
		if c.retry.MaxDelay > 0 && wait > c.retry.MaxDelay {
			wait = c.retry.MaxDelay
		}
		return wait, true
	}
	return c.retry.Backoff(attempt), true
}

func (c *Client) observe(path string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(path, status, d)
	}
}

// parseRetryAfter handles the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// get performs a GET request with retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
