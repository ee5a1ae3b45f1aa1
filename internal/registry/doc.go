// Package registry maintains the in-process mirror of remote background
// agent records. It is advisory, never authoritative: records are updated
// opportunistically from API responses and never deleted.
package registry
