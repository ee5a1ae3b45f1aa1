// Package config handles configuration loading for cursor-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CURSOR_GATEWAY_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/cursor-gateway/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	cursor:
//	  api_key: "${CURSOR_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	cursor:
//	  timeout: "30s"
//	cache:
//	  window: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Tool invocation, launcher UI, health
//
// Cursor Background Agents API:
//
//	cursor:
//	  api_key: "${CURSOR_API_KEY}"       # Required
//	  base_url: "https://api.cursor.com"
//	  timeout: "30s"
//	  max_retries: 3
//	  webhook_url: ""                    # Optional status callback
//
// GitHub branch listing:
//
//	github:
//	  token: "${GITHUB_TOKEN}"   # Optional, unlocks private repos
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${CURSOR_GATEWAY_JWT_SECRET}"   # Empty disables auth
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "cursor-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/cursor-gateway/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
