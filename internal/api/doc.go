// Package api serves the daemon's HTTP surface and defines its wire types.
//
// # Routes
//
// /api/status reports daemon state and the last matching pass.
//
// /api/autorename/... lists associations, shows one association, applies
// operator overrides and triggers a matching pass.
//
// /api/jobs lists durable jobs; /api/jobs/retry resets failed ones.
//
// /api/events long-polls association update events; /api/events/stream
// delivers the same events as Server-Sent Events.
//
// /metrics exposes Prometheus collectors.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Errors are returned as {"error": "..."}; validation failures map to 400,
// unknown associations to 404 and refused overrides to 409.
package api
