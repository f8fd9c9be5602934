package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common catalog errors
var (
	// ErrNotFound indicates the store has no record for the requested id
	ErrNotFound = errors.New("catalog record not found")

	// ErrInvalidBaseURL indicates the configured store URL cannot be parsed
	ErrInvalidBaseURL = errors.New("invalid catalog base url")
)

// APIError describes a failed request against the store
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *APIError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Op, e.Message, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Transient reports whether retrying the same request may succeed
func (e *APIError) Transient() bool {
	if e.StatusCode != 0 {
		return isRetryableStatus(e.StatusCode)
	}
	return isRetryableCause(e.Cause)
}

// IsTransient reports whether err is a transient fetch failure
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return isRetryableCause(err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// isRetryableStatus returns true for HTTP status codes worth retrying
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryableCause returns true for network-level failures
func isRetryableCause(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}
