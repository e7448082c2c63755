package txn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/store"
)

// Tx is the transaction-scoped context of one atomic unit. It carries the
// SQL transaction, the reserved group and the buffered history records.
// Nothing in it outlives the unit.
type Tx struct {
	sqlTx   *sql.Tx
	id      string
	label   string
	group   int64
	records []history.Record
	logger  *slog.Logger
}

// Querier returns the unit's SQL transaction.
func (t *Tx) Querier() store.Querier {
	return t.sqlTx
}

// ID returns the unit id used in log lines.
func (t *Tx) ID() string {
	return t.id
}

// Label returns the unit label.
func (t *Tx) Label() string {
	return t.label
}

// Group returns the undo group reserved for the unit. A unit run with
// MergeWithPrevious is written to the group before this one.
func (t *Tx) Group() int64 {
	return t.group
}

// Record buffers one history record: forward is the action just performed,
// inverse is the action that undoes it.
func (t *Tx) Record(forward, inverse history.Action) {
	t.records = append(t.records, history.Record{
		Group:     t.group,
		Label:     t.label,
		Action:    inverse,
		ReverseOf: forward,
	})
}

// Records returns a copy of the buffered records in the order performed.
func (t *Tx) Records() []history.Record {
	out := make([]history.Record, len(t.records))
	copy(out, t.records)
	return out
}

// Mark returns a position in the record buffer for Compensate.
func (t *Tx) Mark() int {
	return len(t.records)
}

// Compensate undoes every record buffered since mark, newest first, and
// drops them from the buffer. The unit can continue afterwards as if the
// compensated statements had never run.
func (t *Tx) Compensate(ctx context.Context, mark int) error {
	if mark < 0 || mark > len(t.records) {
		return fmt.Errorf("compensate: mark %d out of range [0,%d]", mark, len(t.records))
	}
	for i := len(t.records) - 1; i >= mark; i-- {
		if err := history.Replay(ctx, t.sqlTx, t.records[i].Action); err != nil {
			return fmt.Errorf("compensate record %d: %w", i, err)
		}
	}
	n := len(t.records) - mark
	t.records = t.records[:mark]
	if n > 0 {
		t.logger.Warn("unit compensated",
			"unit_id", t.id,
			"label", t.label,
			"records", n,
		)
	}
	return nil
}
