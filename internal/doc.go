// Package internal documents the event hub server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: entities and the account, category, event and user services
// - storage: generic repository contract, shared GORM layer, Postgres and SQLite backends
// - jobs: background refresh token cleanup
// - auth, audit, config, metrics, sanitize, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
