// Package sheets provides an HTTP client for the Smartsheet REST API 2.0:
// sheet reads, file import/export, and batched row mutations that respect
// the service's per-request item caps. Requests are never retried.
package sheets

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, sheets.ErrNotFound) to check.
var (
	ErrBadRequest       = errors.New("sheets: bad request")
	ErrUnauthorized     = errors.New("sheets: unauthorized")
	ErrForbidden        = errors.New("sheets: forbidden")
	ErrNotFound         = errors.New("sheets: not found")
	ErrThrottled        = errors.New("sheets: throttled")
	ErrServerError      = errors.New("sheets: server error")
	ErrUnexpectedStatus = errors.New("sheets: unexpected status")
)

// APIError is returned for every non-200 response. It carries the request
// that triggered it and the raw response body for diagnostics.
type APIError struct {
	Method     string
	URL        string
	Header     http.Header // request headers, Authorization redacted
	StatusCode int
	Body       string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets: %s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-200 status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpectedStatus
	}
}

// redactHeader returns a copy of h that is safe to log.
func redactHeader(h http.Header) http.Header {
	out := h.Clone()
	if out.Get("Authorization") != "" {
		out.Set("Authorization", "Bearer [REDACTED]")
	}

	return out
}
