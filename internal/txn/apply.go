package txn

import (
	"context"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/history"
)

// Outcome describes a successful ApplyHistory.
type Outcome struct {
	Success bool `json:"success"`

	// Direction is the ledger that was consumed.
	Direction history.Kind `json:"direction"`

	// Group is the consumed group id; zero when the ledger was empty.
	Group int64 `json:"group,omitempty"`

	// Label is the label of the consumed group.
	Label string `json:"label,omitempty"`

	// TableName is the table of the first applied record.
	TableName string `json:"affected_table_name,omitempty"`

	// AffectedIDs are the distinct row ids of TableName, in applied order.
	AffectedIDs []int64 `json:"affected_ids"`
}

// Undo consumes the latest undo group.
func (c *Coordinator) Undo(ctx context.Context) (Outcome, error) {
	return c.ApplyHistory(ctx, history.Undo)
}

// Redo consumes the latest redo group.
func (c *Coordinator) Redo(ctx context.Context) (Outcome, error) {
	return c.ApplyHistory(ctx, history.Redo)
}

// ApplyHistory consumes the latest group of the direction ledger.
//
// In one SQL transaction it reads the group (last applied first), replays
// each record's action, appends the flipped records to the opposite ledger
// as a new group, and deletes the consumed group. An empty ledger is a
// successful no-op.
//
// Every record is decoded and validated before the first replay. A record
// that cannot be interpreted halts undo/redo with CORRUPT_HISTORY until
// ClearHistory is called.
func (c *Coordinator) ApplyHistory(ctx context.Context, direction history.Kind) (Outcome, error) {
	if direction != history.Undo && direction != history.Redo {
		return Outcome{}, errs.InvalidOperation("unknown history direction %q", string(direction))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.halted != nil {
		return Outcome{}, &errs.Error{
			Code:    errs.CodeCorruptHistory,
			Message: "history is halted; clear history to resume",
			Err:     c.halted,
		}
	}

	sqlTx, err := c.store.BeginTx(ctx)
	if err != nil {
		return Outcome{}, errs.TransactionFailure("begin "+string(direction), err)
	}
	ledger := history.NewLedger(sqlTx)

	records, err := ledger.PopLatestGroup(ctx, direction)
	if err != nil {
		if errs.IsCorruptHistory(err) {
			c.halted = err
			c.logger.Error("history halted",
				"direction", string(direction),
				"error", err,
			)
		}
		return Outcome{}, c.rollback(sqlTx, err)
	}
	if len(records) == 0 {
		return Outcome{Success: true, Direction: direction, AffectedIDs: []int64{}}, c.rollback(sqlTx, nil)
	}

	consumed := records[0].Group
	label := records[0].Label
	target := direction.Opposite()

	targetGroup, err := ledger.ReserveGroup(ctx, target)
	if err != nil {
		return Outcome{}, c.rollback(sqlTx, errs.TransactionFailure("reserve group", err))
	}

	flipped := make([]history.Record, 0, len(records))
	for _, r := range records {
		applied := r.Consume()
		if err := history.Replay(ctx, sqlTx, applied.Action); err != nil {
			c.logger.Warn("history replay failed",
				"direction", string(direction),
				"group", consumed,
				"record", r.ID,
				"error", err,
			)
			return Outcome{}, c.rollback(sqlTx, err)
		}
		flipped = append(flipped, applied.Flip())
	}

	if err := ledger.Append(ctx, target, targetGroup, label, flipped); err != nil {
		return Outcome{}, c.rollback(sqlTx, errs.TransactionFailure("append "+string(target), err))
	}
	if _, err := ledger.Trim(ctx, target, c.limit); err != nil {
		return Outcome{}, c.rollback(sqlTx, errs.TransactionFailure("trim "+string(target), err))
	}
	if err := ledger.DeleteGroup(ctx, direction, consumed); err != nil {
		return Outcome{}, c.rollback(sqlTx, errs.TransactionFailure("consume "+string(direction), err))
	}
	if err := sqlTx.Commit(); err != nil {
		return Outcome{}, errs.TransactionFailure("commit "+string(direction), err)
	}

	out := outcome(direction, consumed, label, records)
	c.logger.Info("history applied",
		"direction", string(direction),
		"group", consumed,
		"label", label,
		"table", out.TableName,
		"ids", out.AffectedIDs,
	)
	return out, nil
}

func outcome(direction history.Kind, group int64, label string, applied []history.Record) Outcome {
	out := Outcome{
		Success:     true,
		Direction:   direction,
		Group:       group,
		Label:       label,
		AffectedIDs: []int64{},
	}
	if len(applied) == 0 {
		return out
	}
	out.TableName = applied[0].Action.Table

	seen := make(map[int64]bool)
	for _, r := range applied {
		if r.Action.Table != out.TableName {
			continue
		}
		id, ok := r.Action.RowID()
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out.AffectedIDs = append(out.AffectedIDs, id)
	}
	return out
}
