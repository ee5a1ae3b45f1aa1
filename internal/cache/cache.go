// ABOUTME: Time-boxed key/payload cache with stale fallback on refresh failure
// ABOUTME: Validity is the only gate; expired entries stay available as degraded data

package cache

import (
	"sync"
	"time"
)

// DefaultWindow is the freshness window shared by all entries.
const DefaultWindow = 300 * time.Second

// RefreshFunc fetches a fresh payload for a key.
type RefreshFunc func() (map[string]any, error)

// entry pairs a payload with its capture time. An entry is valid iff
// now - capturedAt < window.
type entry struct {
	payload    map[string]any
	capturedAt time.Time
}

// Cache is a mutex-guarded key→(payload, timestamp) store. The lock is
// not held across a refresh call, so two concurrent refreshes of the same
// expired key may both run; last write wins. That lost update is
// acceptable: refreshes are idempotent lookups and the cache is advisory.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	window  time.Duration
	now     func() time.Time
}

// New creates a cache with the given freshness window. A zero window
// means DefaultWindow.
func New(window time.Duration) *Cache {
	if window == 0 {
		window = DefaultWindow
	}
	return &Cache{
		entries: make(map[string]entry),
		window:  window,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Valid reports whether a fresh entry exists for key.
func (c *Cache) Valid(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now().Sub(e.capturedAt) < c.window
}

// GetOrRefresh returns the payload for key. A valid entry is returned
// without invoking refresh. Otherwise refresh runs: on success the result
// is stored and returned; on failure any prior entry (even expired) is
// returned with degraded=true, and only when no prior entry exists is the
// refresh error propagated.
func (c *Cache) GetOrRefresh(key string, refresh RefreshFunc) (payload map[string]any, degraded bool, err error) {
	return c.get(key, refresh, false)
}

// ForceRefresh bypasses the validity check but keeps the
// stale-on-failure fallback.
func (c *Cache) ForceRefresh(key string, refresh RefreshFunc) (payload map[string]any, degraded bool, err error) {
	return c.get(key, refresh, true)
}

func (c *Cache) get(key string, refresh RefreshFunc, force bool) (map[string]any, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !force && ok && c.now().Sub(e.capturedAt) < c.window {
		c.mu.Unlock()
		return e.payload, false, nil
	}
	c.mu.Unlock()

	fresh, err := refresh()
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if prior, exists := c.entries[key]; exists {
			return prior.payload, true, nil
		}
		return nil, false, err
	}

	c.mu.Lock()
	c.entries[key] = entry{payload: fresh, capturedAt: c.now()}
	c.mu.Unlock()
	return fresh, false, nil
}

// Clear wipes all keys and timestamps. Callers observe no partial clear.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, valid or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
