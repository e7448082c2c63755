// Package txn implements the transaction coordinator.
//
// Every mutating call runs as one atomic unit: one SQL transaction, one
// reserved undo group, and a transaction-scoped Tx that collects the
// unit's history records. On success the records become one group in the
// undo ledger and the transaction commits; on any error the whole
// transaction rolls back, ledger writes included.
//
// ApplyHistory consumes the latest group of the undo or redo ledger,
// replays it, and moves its reverse into the opposite ledger, again inside
// one transaction.
//
// Thread-safety model:
//   - Coordinator methods are safe from any goroutine; units are serialized
//   - A Tx belongs to the goroutine running the unit and must not escape it
package txn
