package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSessionExpired   = fmt.Errorf("session expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRequestRejected    = fmt.Errorf("request rejected")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAnimeNotFound      = fmt.Errorf("anime not found")
	ErrItemNotFound       = fmt.Errorf("list item not found")

	// Input validation errors
	ErrInvalidStatus   = fmt.Errorf("invalid status")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// APIError is a non-2xx backend response carrying the server's error message.
//
// It matches [ErrRequestRejected] with [errors.Is].
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: status %d", ErrRequestRejected, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", ErrRequestRejected, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrRequestRejected
}

// ServerMessage returns the backend's message from err if it wraps an [APIError], otherwise fallback.
func ServerMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
