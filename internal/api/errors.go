package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCursorLoop is returned when the server hands back a cursor it already
// returned during the same sweep.
var ErrCursorLoop = errors.New("pagination cursor repeated")

// APIError represents an error from the Kalshi API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       []byte
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kalshi api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// AuthenticationError means the venue rejected the credential or signature.
// It is never retried.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("kalshi authentication failed (%d): %s", e.StatusCode, e.Message)
}

// RateLimitError is returned when requests were still throttled after the
// retry budget was spent.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts (rate limited): %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientNetworkError is returned when a server or network failure
// persisted for the whole retry budget.
type TransientNetworkError struct {
	Attempts int
	Err      error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// IsUpstreamUnavailable reports whether err means the venue could not be
// reached within the retry budget.
func IsUpstreamUnavailable(err error) bool {
	var rl *RateLimitError
	var tn *TransientNetworkError
	return errors.As(err, &rl) || errors.As(err, &tn)
}

// networkError marks a transport failure that is worth retrying.
type networkError struct {
	err error
}

func (e *networkError) Error() string { return e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIError(status int, body []byte, retryAfter time.Duration) *APIError {
	e := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       body,
		RetryAfter: retryAfter,
	}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
		e.Code = eb.Error.Code
		e.Message = eb.Error.Message
	}
	return e
}
