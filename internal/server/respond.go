package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rickgao/kalshi-tracker/internal/analytics"
	"github.com/rickgao/kalshi-tracker/internal/api"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest         = "bad_request"
	codeNotFound           = "not_found"
	codeUpstreamAuthFailed = "upstream_auth_failed"
	codeUpstreamUnavail    = "upstream_unavailable"
	codeUnavailable        = "unavailable"
	codeInternal           = "internal_error"
)

// badRequestError marks invalid client input.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"internal_error","message":"encode response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

// statusFor maps an error to an HTTP status, error code and client-safe
// message. Venue error text is never echoed.
func statusFor(err error) (int, string, string) {
	var br *badRequestError
	var authErr *api.AuthenticationError
	var apiErr *api.APIError
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, codeBadRequest, br.msg
	case errors.Is(err, analytics.ErrInvalidPeriod):
		return http.StatusBadRequest, codeBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "not found"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, codeNotFound, "not found"
	case errors.As(err, &authErr):
		return http.StatusBadGateway, codeUpstreamAuthFailed, "venue rejected the configured credentials"
	case api.IsUpstreamUnavailable(err):
		return http.StatusServiceUnavailable, codeUpstreamUnavail, "venue unavailable, try again later"
	default:
		return http.StatusInternalServerError, codeInternal, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	if status >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.Any("err", err),
		)
	}
	writeErrorCode(w, status, code, msg)
}

// periodParam reads ?period=, falling back to def when absent.
func periodParam(r *http.Request, def analytics.Period) (analytics.Period, error) {
	v := r.URL.Query().Get("period")
	if v == "" {
		return def, nil
	}
	return analytics.ParsePeriod(v)
}

// limitParam reads ?limit= bounded to [1, max]; absent means def.
func limitParam(r *http.Request, def, max int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > max {
		return 0, badRequest("limit must be an integer between 1 and " + strconv.Itoa(max))
	}
	return n, nil
}
