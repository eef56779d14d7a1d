// Package queue persists pipeline items in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-item recovery, and status transitions
// that mirror the public workflow enum. Queue items capture per-clip
// progress, probe results, and artifact paths so stages can coordinate
// without additional state: the frame stage records the frame directory and
// count, the feature stage records the cached feature file.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive; the durable pipeline outputs are the frame and
// feature directories. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or metadata fields, update schema.sql and bump
// schemaVersion.
package queue
