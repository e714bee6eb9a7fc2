// Package internal documents the favorites server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses and routing
// - domain/favorites: list access control, provisioning and aggregation
// - directory: clients for the remote event and user services
// - storage: list store drivers (postgres, sqlite, memory)
// - provision: cross-replica provisioning locks backed by Redis
// - auth, audit, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
