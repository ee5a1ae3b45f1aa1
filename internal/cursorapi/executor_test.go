// ABOUTME: Tests for the retrying request executor
// ABOUTME: Verifies retry classification, backoff schedule, and error taxonomy

package cursorapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep captures backoff delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

// newTestExecutor wires an executor at the given upstream URL.
func newTestExecutor(t *testing.T, baseURL string) (*Executor, *recordingSleep) {
	t.Helper()
	session := NewSession(Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxRetries: 3,
	})
	t.Cleanup(session.Close)

	exec := NewExecutor(session, slog.Default())
	rec := &recordingSleep{}
	exec.SetSleep(rec.sleep)
	return exec, rec
}

func TestDoReturnsDecodedBodyOnSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "agent-1", "status": "CREATING"})
	}))
	defer srv.Close()

	exec, rec := newTestExecutor(t, srv.URL)
	result, err := exec.Do(context.Background(), http.MethodPost, "/v0/agents", map[string]any{"model": "o3"})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", result["id"])
	assert.Equal(t, int32(1), attempts.Load())
	assert.Empty(t, rec.delays, "no backoff on first-attempt success")
}

func TestDoRetriesRateLimitThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []string{"o3"}})
	}))
	defer srv.Close()

	exec, rec := newTestExecutor(t, srv.URL)
	result, err := exec.Do(context.Background(), http.MethodGet, "/v0/models", nil)
	require.NoError(t, err)

	assert.NotNil(t, result["models"])
	assert.Equal(t, int32(3), attempts.Load())
	// Exactly two backoff sleeps: 2^0 and 2^1 seconds.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, rec.delays)
}

func TestDoSurfacesExhaustedRetriesOnSustainedRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	exec, rec := newTestExecutor(t, srv.URL)
	_, err := exec.Do(context.Background(), http.MethodGet, "/v0/models", nil)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, rec.delays, 3)
}

func TestDoFailsImmediatelyOnUnauthorized(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	exec, rec := newTestExecutor(t, srv.URL)
	_, err := exec.Do(context.Background(), http.MethodGet, "/v0/agents", nil)

	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(1), attempts.Load(), "401 must not be retried")
	assert.Empty(t, rec.delays)
}

func TestDoFailsImmediatelyOnDefiniteRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid repository"}`))
	}))
	defer srv.Close()

	exec, _ := newTestExecutor(t, srv.URL)
	_, err := exec.Do(context.Background(), http.MethodPost, "/v0/agents", map[string]any{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid repository")
}

func TestDoWrapsNetworkFaultAfterRetries(t *testing.T) {
	// A server that is immediately closed produces connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	exec, rec := newTestExecutor(t, srv.URL)
	_, err := exec.Do(context.Background(), http.MethodGet, "/v0/models", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, netErr.Attempts)
	// Backoff before each retry but not after the final failure.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, rec.delays)
}

func TestDoFailsOnClosedSession(t *testing.T) {
	session := NewSession(Config{BaseURL: "http://localhost:0", APIKey: "k"})
	session.Close()

	exec := NewExecutor(session, slog.Default())
	_, err := exec.Do(context.Background(), http.MethodGet, "/v0/models", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
