// Package history implements the undo and redo ledgers.
//
// A ledger is an append-only SQL table of reverse-action records. Each
// record carries the Action that consuming it applies and the forward
// Action it reverses (ReverseOf). Records that belong to one logical user
// action share a group id; a group is consumed as a whole, highest
// order_in_group first.
//
// Every Ledger method runs against a store.Querier, normally the caller's
// open *sql.Tx, so ledger writes commit or roll back together with the data
// mutations they describe.
package history
