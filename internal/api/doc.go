// Package api implements the HTTP and WebSocket command surface of focuserd.
//
// This package provides:
//   - REST endpoints for the focuser commands and status queries
//   - A WebSocket hub streaming status snapshots and lifecycle events
//   - The read-only browser status panel at /
//   - Middleware (request ID, logging, recovery, body size limit, caller address)
//   - TLS support
//
// # Architecture
//
// Every command endpoint attaches the caller's address (from RemoteAddr) to
// the request context and calls the orchestrator, which applies the control
// allowlist. Command responses are always 200 with the numeric result code
// and its label, so clients branch on the code and not on the HTTP status.
// Transport-level failures (bad JSON, unknown route) use HTTP error statuses.
//
//	POST /api/v1/home  ->  200 {"result": 0, "label": "command succeeded"}
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
