// Package gateway orchestrates the cursor-agent-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the server. It owns the
// upstream Cursor API session, the tool handlers with their cache and agent
// registry, the MCP server, and the optional launcher web UI, and manages
// the HTTP listener lifecycle.
//
// # HTTP Surface
//
// All components share a single listener:
//
//   - POST/DELETE /mcp - MCP Streamable HTTP endpoint
//   - GET / and /api/* - launcher UI (when webconfig.enabled)
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check
//
// # Listeners
//
// The gateway serves on a plain TCP listener by default. When
// tailscale.enabled is set it joins the tailnet via tsnet instead, serving
// on :80, on :443 with configured certs, or publicly via Funnel.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Graceful shutdown:
//
//	cancel()
//
// Run blocks until the context is canceled, then shuts the HTTP server down
// with a timeout and releases the upstream session.
package gateway
