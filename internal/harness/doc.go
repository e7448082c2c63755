// Package harness runs YAML scenarios against a fresh cadence database and
// snapshots the result.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	setup:
//	  - op: create_beats
//	    args: { durations: [1, 1, 1] }
//	flow:
//	  - op: shift_beats
//	    args: { start: 2, amount: 2 }
//	    expect:
//	      case: success
//	      ids: [3, 2]
//	  - op: shift_beats
//	    args: { start: 0, amount: 2 }
//	    expect: { case: error, code: INVALID_OPERATION }
//	assertions:
//	  - type: positions
//	    positions: [0, 1, 4, 5]
//	  - type: history
//	    ledger: undo
//	    count: 2
//
// Setup steps must succeed. Flow steps are checked against their expect
// clause; a step without one must succeed.
//
// # Operations
//
//   - create_beats: durations, after, include_in_measure, notes, merge
//   - shift_beats: start, amount, merge
//   - flatten_order: merge
//   - update_beats: updates (id, position, duration, include_in_measure,
//     notes, clear_notes), merge
//   - delete_beats: ids, merge
//   - create_measures: start_beats, rehearsal_mark
//   - delete_measures: ids
//   - undo, redo, clear_history
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace with matching args
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: one row of a table has the expected column values
//   - positions: every beat position, ascending, sentinel included
//   - order: beat ids in position order, sentinel included
//   - history: group count (and optionally the latest label) of a ledger
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory database with a
// testutil.DeterministicClock for timestamps and testutil.SequentialIDs for
// unit ids, so two runs of the same scenario produce identical snapshots.
// RunWithGolden compares the snapshot with testdata/golden/<name>.golden.
package harness
