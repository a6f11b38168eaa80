// Package mcp implements the Model Context Protocol bridge for casebook.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package exposes the casebook record operations as a fixed catalog of MCP
// tools, dispatching each call to the casebook-server HTTP API through a
// Tracker. Two transports are supported: Streamable HTTP (POST /mcp with
// Mcp-Session-Id sessions) and stdio (one JSON-RPC message per line), so
// the bridge works both as a network service and as a child process of an
// MCP host.
//
// # Tool Catalog
//
// The catalog is fixed at seven tools, one per record operation:
//
//   - get_customer_tickets - full record for one customer
//   - add_customer_tickets - attach ticket keys, optionally set notes
//   - add_ticket_comment - append a comment to one ticket
//   - update_customer_notes - replace a customer's notes
//   - remove_customer_tickets - detach ticket keys
//   - list_customers - summaries with ticket counts
//   - export_customer_data - render a record as markdown or HTML
//
// Arguments are validated against the declared schema before any dispatch;
// a failed validation names every offending field and never touches the
// server.
//
// # Result Envelope
//
// Every tools/call outcome uses one canonical envelope. Success is a
// single text content item holding the operation result as indented JSON:
//
//	{"content": [{"type": "text", "text": "{\n  \"name\": \"Acme\", ...}"}]}
//
// A failed operation sets isError and carries a compact JSON object
// naming the failure kind:
//
//	{"content": [{"type": "text", "text": "{\"kind\":\"not_found\",\"message\":\"customer \\\"Ghost\\\": not found\"}"}], "isError": true}
//
// Kinds are not_found, invalid_input, unauthorized, storage_fault, and
// internal. Protocol-level failures (malformed JSON-RPC, unknown method,
// unknown tool, oversized body) are JSON-RPC error objects instead, never
// tool results.
//
// # Authentication
//
// On the HTTP transport the bridge can require the shared API key:
//
//	Authorization: Bearer <key>
//
// Missing or mismatched keys are rejected before any dispatch. The stdio
// transport carries no credentials; the host process owns the pipe.
//
// # Usage
//
//	server, err := mcp.NewServer(mcp.Config{
//		Tracker: client.New("http://localhost:8080", apiKey, 10*time.Second),
//		Logger:  logger,
//	})
//	mux := http.NewServeMux()
//	server.RegisterRoutes(mux)
//
// or, under an MCP host:
//
//	err := server.ServeStdio(ctx, os.Stdin, os.Stdout)
package mcp
