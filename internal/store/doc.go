// Package store provides SQLite-backed durable storage for the Halo command
// backend.
//
// Tables:
//   - households, users, preferences: identity scope and defaults
//   - usual_items, subscriptions, booking_vendors: household catalog state
//   - execution_requests: one immutable row per submitted command
//   - drafts, confirmations, executions, receipt_artifacts: the draft
//     lifecycle
//   - event_log: append-only audit trail, totally ordered by seq
//
// # Invariants
//
// The event log is append-only; triggers abort any UPDATE or DELETE against
// it. An execution leaves IN_PROGRESS exactly once; a trigger aborts any
// further update once it is DONE or FAILED.
//
// Every event row carries a payload_hash: SHA-256 over the event type and the
// RFC 8785 canonical payload with domain separation (see domain.EventPayloadHash).
//
// Multi-row state changes go through WithTx so the event describing a change
// commits with the change itself.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The pool holds a single connection. Code running inside WithTx must use the
// *Tx it was handed; touching the *Store from inside the callback blocks.
package store
