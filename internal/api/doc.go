// Package api implements the HTTP REST API and WebSocket server for Atlas.
//
// This package provides:
//   - REST endpoints for login, layout reads, version history, and revert
//   - WebSocket hub carrying the layout sync protocol (full_sync, edit_request,
//     diff, stale_reject, device_command, device_state_update)
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between editor clients (web floor-plan editor, wall
// panels) and the sync coordinator. Edits flow from WebSocket clients through
// the coordinator, which persists them and hands the resulting diff back to
// the hub for broadcast. Device state flows in from the Home Assistant bridge
// via the coordinator and out to clients as device_state_update messages.
//
// # Security
//
// Authentication uses JWT session tokens issued by the auth gate.
// WebSocket connections use single-use tickets to prevent token leakage in
// URLs. Anonymous viewer access is a deployment choice
// (security.allow_anonymous_read).
package api
