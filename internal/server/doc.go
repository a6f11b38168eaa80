// Package server orchestrates the casebook-server components.
//
// # Overview
//
// The server package is the central coordinator of casebook-server. It owns
// the customer record store, the mutation journal, the export engine, and
// the HTTP listener that exposes them.
//
// # HTTP API
//
// Endpoints registered in api.go (JSON in, JSON out):
//
//   - GET    /api/customers - List customers with ticket counts
//   - GET    /api/customers/{name}/tickets - Full customer record
//   - POST   /api/customers/{name}/tickets - Add tickets (and optionally notes)
//   - DELETE /api/customers/{name}/tickets - Remove tickets
//   - POST   /api/customers/{name}/tickets/{key}/comments - Add a comment
//   - PUT    /api/customers/{name}/notes - Replace customer notes
//   - GET    /api/customers/{name}/export - Render a customer report
//   - GET    /api/stats - Aggregate record totals
//   - GET    /api/audit - Recent mutation journal entries
//   - GET    /health - Liveness check
//   - GET    /ready - Readiness check (storage writable)
//
// Errors use one envelope: {"error": "<message>"} with the status carrying
// the kind (404 unknown customer/ticket, 400 invalid arguments, 401 bad
// key, 500 storage fault).
//
// # Authentication
//
// When auth.require is set, every /api route demands the configured shared
// key as a bearer token. /health and /ready stay open for probes.
//
// # Lifecycle
//
// Start the server:
//
//	srv, err := server.New(cfg, version, logger)
//	err = srv.Run(ctx)
//
// Run blocks until the context is canceled or the listener fails, then
// drains in-flight requests with a shutdown timeout and closes the journal.
package server
