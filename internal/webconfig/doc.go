// Package webconfig serves the agent launcher web UI: a browser form for
// composing and launching background agents without an MCP client, plus a
// small JSON API backing it. Launch configurations can be saved as named
// presets persisted to a TOML file.
package webconfig
