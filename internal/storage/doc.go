// Package storage defines the durable backing store behind a DurableScheduler.
//
// A Storage is bound to one namespace at a time. Each sanitized namespace
// maps to an isolated partition (a file for SQLite, a table for Postgres),
// so queues configured with different namespaces never interfere.
//
// # Guarantees every adapter must provide
//
//   - PushItem is idempotent per key: a second insert with the same key is
//     swallowed and reported as inserted=false, never as an error.
//   - PullItems selects and marks records in one atomic store operation.
//     Concurrent callers, including other processes, never receive the
//     same record.
//   - Records that fail to decode are still marked taken and reported
//     through *SkippedError alongside the requests that did decode.
//
// The storagetest package holds the conformance suite shared by adapters.
package storage
