// Package beats implements the ordered beat sequence.
//
// Beats hold a unique integer position. The sentinel beat (id 0, position
// 0, duration 0) anchors the sequence: it is never updated, shifted or
// deleted. Every other beat sits at a position >= 1, and after FlattenOrder
// (which DeleteBeats always runs) the positions are exactly 1..N.
//
// Each Sequencer method is one atomic unit and therefore one undo group.
// The *InTx variants run inside a unit the caller already opened, so several
// sequence operations can share one group.
//
// Moves are ordered so no two beats ever share a position, not even inside
// a transaction: forward shifts walk from the highest position down,
// backward shifts and flattening walk from the lowest up.
package beats
