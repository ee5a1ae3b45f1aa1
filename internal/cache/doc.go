// Package cache provides a time-boxed lookup cache that serves
// stale-but-present entries as a degraded-mode fallback when a refresh
// fails. Expired entries are bypassed, never evicted.
package cache
