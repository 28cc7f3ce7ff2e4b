package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrAuthError indicates a missing or invalid API key.
	ErrAuthError = errors.New("model service authentication error")

	// ErrRateLimited indicates the service rejected the call for rate.
	ErrRateLimited = errors.New("model service rate limit exceeded")

	// ErrEmptyResponse indicates a response without any choices or vectors.
	ErrEmptyResponse = errors.New("empty response from model service")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with model service")
)

// APIError represents a non-2xx response from the model service.
type APIError struct {
	StatusCode int
	Message    string
	Model      string
}

func (e *APIError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("model service error (status %d, model %s): %s", e.StatusCode, e.Model, e.Message)
	}
	return fmt.Sprintf("model service error (status %d): %s", e.StatusCode, e.Message)
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsTransient reports whether a call may succeed if repeated:
// network failures, rate limiting and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNetworkError) || IsRateLimited(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}
