// Package tools implements the operation handlers behind the cursor_*
// tool surface. Each handler validates its arguments, composes the
// request executor, the lookup cache, and the agent registry, and returns
// a normalized {success, ...} envelope — failures included. No raw error
// ever crosses the tool-invocation boundary.
package tools
