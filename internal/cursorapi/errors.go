// ABOUTME: Error taxonomy for remote API failures
// ABOUTME: Distinguishes retryable faults from definite rejections

package cursorapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for non-retryable and exhausted conditions.
var (
	// ErrAuthentication indicates a 401 from the API. Never retried.
	ErrAuthentication = errors.New("authentication failed: check your Cursor API key")

	// ErrRetriesExhausted indicates sustained rate limiting consumed
	// every configured attempt.
	ErrRetriesExhausted = errors.New("request failed after exhausting retries")

	// ErrSessionClosed is returned when a request is attempted on a
	// closed session. Callers must create a new session; there is no
	// implicit reconnect.
	ErrSessionClosed = errors.New("session is closed")
)

// APIError is a definite rejection from the API: any non-2xx status other
// than 401 and 429. It is never retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.Status, e.Body)
}

// NetworkError wraps a connection-level fault (reset, timeout, DNS) that
// persisted through every retry attempt.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
