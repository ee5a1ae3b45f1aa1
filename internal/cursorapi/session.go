// ABOUTME: Transport session owning the HTTP connection pool and auth headers
// ABOUTME: Lazily established, idempotently reusable, explicitly released

package cursorapi

import (
	"net/http"
	"sync"
	"time"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultBaseURL    = "https://api.cursor.com"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	userAgent         = "cursor-agent-gateway/1.0"
)

// Config holds the immutable connection settings for the Cursor API.
// It is created once at process start and read-only thereafter.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// withDefaults fills zero-valued fields with their defaults.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Session owns one persistent authenticated connection configuration to
// the remote API. The underlying HTTP client is created on first use and
// shared by all in-flight operations. At most one live client exists per
// session; Close is idempotent and there is no implicit reconnect.
type Session struct {
	cfg Config

	mu     sync.Mutex
	client *http.Client
	closed bool
}

// NewSession creates a session for the given configuration. No connection
// is established until the first request.
func NewSession(cfg Config) *Session {
	return &Session{cfg: cfg.withDefaults()}
}

// Config returns the session's (defaulted) configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Active reports whether the underlying client has been created and the
// session has not been closed.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && !s.closed
}

// ensure returns the ready HTTP client, creating it on first call with the
// configured timeout. A second call when already open is a no-op. Returns
// ErrSessionClosed after Close.
func (s *Session) ensure() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.cfg.Timeout}
	}
	return s.client, nil
}

// setHeaders applies the fixed request headers: bearer credential, content
// type, and user agent.
func (s *Session) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// Close releases the connection pool. Safe to call multiple times; any
// subsequent request fails with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
	}
}
