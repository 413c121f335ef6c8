// Package store provides SQLite-backed durable storage for the event log
// and document snapshots.
//
// # Tables
//
//   - events: one row per event, payload stored as canonical JSON
//   - snapshots: encoded documents tagged with the timestamp of the last
//     event folded into them, plus a content hash
//
// # Ordering
//
// Events are read in (timestamp, id) order with binary collation. Stored
// timestamps may mix offsets and precisions, so callers sort by instant after
// reading. Snapshot tags are written in event.SnapshotLayout, which makes
// the latest snapshot the greatest tag.
//
// # Idempotency
//
// AppendEvent and AppendEvents use ON CONFLICT(id) DO NOTHING. Migration
// events carry content-derived ids, so two devices appending the same
// synthetic event produce one row. AppendEvents writes a batch in one
// transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - One open connection: SQLite allows a single writer
package store
