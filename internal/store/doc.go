// Package store owns the customer ticket records and their durable form.
//
// # Data Model
//
//   - Customer: the durable unit, keyed by case-sensitive name, holding
//     free-text notes and an ordered set of tickets
//   - Ticket: an issue-tracker item, keyed uniquely within its customer
//   - Comment: an append-only annotation on a ticket
//
// # Durability
//
// FileStore keeps one JSON document per customer under a single directory,
// named after the sanitized customer name. Every mutation is written to a
// temp file in the same directory, synced, then atomically renamed over the
// previous document, so readers only ever observe a fully written version
// and a crash mid-write leaves the prior state intact.
//
// # Concurrency
//
// Each customer's document is guarded by its own lock, created on first
// use. Mutations on the same customer are applied in lock-acquisition
// order; mutations on different customers never block each other. Reads
// take no lock.
//
// # Errors
//
//   - ErrNotFound: customer or ticket does not exist
//   - ErrInvalidInput: empty or malformed arguments
//
// Anything else returned by a store operation is a storage fault (I/O or
// decode failure) wrapped with context.
//
// # Journal
//
// Journal is a SQLite-backed append-only trail of successful mutations,
// recorded best-effort by the HTTP layer and served newest-first by the
// audit API. It never participates in reads of record state.
package store
