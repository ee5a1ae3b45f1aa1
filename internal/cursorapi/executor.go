// ABOUTME: Retrying request executor for the Cursor API
// ABOUTME: Bounded retries with unjittered exponential backoff on 429 and network faults

package cursorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SleepFunc pauses for the given duration or returns early with the
// context's error. Injected so tests can run without real timers.
type SleepFunc func(ctx context.Context, d time.Duration) error

// defaultSleep waits on a real timer.
func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor issues single logical requests over a Session with bounded
// retries. Backoff is unjittered 2^attempt seconds; call volume is low and
// operator-driven, so thundering-herd avoidance is not a concern here.
type Executor struct {
	session *Session
	sleep   SleepFunc
	logger  *slog.Logger
}

// NewExecutor creates an executor over the given session.
func NewExecutor(session *Session, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		session: session,
		sleep:   defaultSleep,
		logger:  logger,
	}
}

// SetSleep replaces the backoff sleep function. Test hook.
func (e *Executor) SetSleep(fn SleepFunc) {
	e.sleep = fn
}

// backoff returns the delay before the next retry: 2^attempt seconds.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Do executes method+path against the API, retrying rate limits and
// network faults up to the configured maximum.
//
// Classification per attempt:
//   - 200/201: return the decoded body.
//   - 401: fail immediately with ErrAuthentication.
//   - 429: sleep 2^attempt, retry; exhausted retries surface ErrRetriesExhausted.
//   - other non-2xx: fail immediately with *APIError (definite rejection).
//   - transport fault: sleep 2^attempt, retry; last attempt fails with *NetworkError.
func (e *Executor) Do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	client, err := e.session.ensure()
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	url := e.session.Config().BaseURL + path
	maxRetries := e.session.Config().MaxRetries

	var lastNetErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, retry, err := e.attempt(ctx, client, method, url, payload)
		if err == nil && !retry {
			return result, nil
		}
		if err != nil && !retry {
			return nil, err
		}

		// Retryable: remember network faults so the final error wraps the
		// last one observed.
		if err != nil {
			lastNetErr = err
			if attempt == maxRetries-1 {
				return nil, &NetworkError{Attempts: maxRetries, Err: lastNetErr}
			}
		}

		delay := backoff(attempt)
		e.logger.Warn("retrying request",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"delay", delay,
		)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return nil, &NetworkError{Attempts: attempt + 1, Err: sleepErr}
		}
	}

	return nil, ErrRetriesExhausted
}

// attempt performs one request. The retry result is true for 429 and for
// transport faults; err is nil for a retryable 429 (nothing to wrap) and
// non-nil for everything else that failed.
func (e *Executor) attempt(ctx context.Context, client *http.Client, method, url string, payload []byte) (result map[string]any, retry bool, err error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	e.session.setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		decoded := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, false, fmt.Errorf("decoding response body: %w", err)
			}
		}
		return decoded, false, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, ErrAuthentication

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, nil

	default:
		return nil, false, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
}
