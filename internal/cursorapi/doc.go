// Package cursorapi provides the authenticated HTTP transport to the
// Cursor Background Agent API: a lazily-created session and a request
// executor with bounded retries and exponential backoff.
package cursorapi
