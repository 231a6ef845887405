package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized signals that the session could not be renewed and the
	// caller must return the user to the unauthenticated entry point. The
	// credential store has already been cleared when this error surfaces.
	ErrUnauthorized = errors.New("unauthorized, re-authentication required")
)

// APIError carries a non-retryable failure status and message from the
// backend, propagated to the caller unmodified.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}
