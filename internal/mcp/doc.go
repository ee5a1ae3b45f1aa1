// Package mcp implements the Model Context Protocol server for external tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This package
// provides an MCP-compatible HTTP server that exposes the cursor_* tools,
// resources, and prompts to external AI clients (like Claude Desktop, other
// LLMs, or custom applications).
//
// # Protocol
//
// The server speaks JSON-RPC 2.0 over the Streamable HTTP transport:
//
//   - POST /mcp - JSON-RPC requests (initialize, tools/*, resources/*, prompts/*)
//   - DELETE /mcp - session termination
//
// Clients initialize first and carry the returned Mcp-Session-Id header on
// every subsequent request. Notifications (requests without an id) are
// accepted with HTTP 202 and no body.
//
// # Authentication
//
// When a JWT secret is configured the server requires bearer auth on
// initialize:
//
//	Authorization: Bearer <token>
//
// Without a secret the endpoint is open.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "cursor_create_background_agent",
//	    "arguments": {"repository_url": "...", "prompt": "..."}
//	  },
//	  "id": 2
//	}
//
// Results are a single text content block carrying the handler's JSON
// envelope. Operational failures stay inside the envelope; only malformed
// requests produce JSON-RPC errors.
//
// # Resources
//
// Three read-only resources expose gateway state:
//
//   - mcp://cursor-agent/api-config - upstream API settings (secrets reduced to booleans)
//   - mcp://cursor-agent/agents-summary - tracked agents grouped by status
//   - mcp://cursor-agent/usage-metrics - live usage report
//
// # Usage
//
// Create and mount the server:
//
//	server, err := mcp.NewServer(mcp.Config{Handlers: handlers, Logger: logger})
//	server.RegisterRoutes(mux)
//
// # Integration with Claude Desktop
//
// Add to Claude Desktop's MCP configuration:
//
//	{
//	  "mcpServers": {
//	    "cursor-agents": {
//	      "url": "http://localhost:8080/mcp",
//	      "authorization": "Bearer <token>"
//	    }
//	  }
//	}
package mcp
