// Package store provides SQLite-backed durable storage for the drill
// editor's history core.
//
// The store holds:
//   - history_undo / history_redo: append-only ledgers of reverse-action
//     records, grouped by group_id, unique on (group_id, order_in_group)
//   - history_counters: one monotonic group counter per ledger
//   - beats: the ordered beat sequence, seeded with the sentinel beat
//     (id 0, position 0, duration 0) and guarded by triggers
//   - measures: rows anchored on a start beat (foreign key, no cascade)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: single writer, one transaction per mutating call
//
// Store exposes a Querier so the ledger and CRUD packages can run the same
// statements against *sql.DB or an open *sql.Tx. Classify turns driver
// errors into the structured codes of package errs.
package store
