package beats

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/roach88/cadence/internal/crud"
	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/schema"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/txn"
	"github.com/roach88/cadence/internal/value"
)

const table = schema.Beats

// Sequencer runs beat operations through the coordinator and executor.
type Sequencer struct {
	coord *txn.Coordinator
	exec  *crud.Executor
}

// New creates a Sequencer.
func New(coord *txn.Coordinator, exec *crud.Executor) *Sequencer {
	return &Sequencer{coord: coord, exec: exec}
}

// Option configures a sequencer call.
type Option func(*options)

type options struct {
	after    *int64
	merge    bool
	unitOpts []txn.UnitOption
}

// AfterPosition inserts new beats directly after position p. Beats above p
// move up to make room. p = 0 inserts right after the sentinel.
func AfterPosition(p int64) Option {
	return func(o *options) {
		o.after = &p
	}
}

// MergeWithPrevious adds the call's history to the previous undo group
// instead of opening a new one. Ignored by the *InTx variants.
func MergeWithPrevious() Option {
	return func(o *options) {
		o.merge = true
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.merge {
		o.unitOpts = append(o.unitOpts, txn.MergeWithPrevious())
	}
	return o
}

// CreateBeats inserts beats as one undo group. Without AfterPosition the
// beats are appended after the current last position.
func (s *Sequencer) CreateBeats(ctx context.Context, beats []NewBeat, opts ...Option) ([]Beat, error) {
	o := buildOptions(opts)
	var out []Beat
	err := s.coord.Run(ctx, "create beats", func(tx *txn.Tx) error {
		var err error
		out, err = s.CreateBeatsInTx(ctx, tx, beats, opts...)
		return err
	}, o.unitOpts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBeatsInTx is CreateBeats inside an open unit.
//
// With AfterPosition(p), beats above p are shifted up by len(beats) first,
// then the new beats take positions p+1 … p+len(beats). A p beyond the last
// position is clamped to it so the sequence stays gap free.
func (s *Sequencer) CreateBeatsInTx(ctx context.Context, tx *txn.Tx, beats []NewBeat, opts ...Option) ([]Beat, error) {
	o := buildOptions(opts)
	for i, b := range beats {
		if err := checkDuration(b.Duration); err != nil {
			return nil, fmt.Errorf("beat %d: %w", i, err)
		}
	}
	if o.after != nil && *o.after < 0 {
		return nil, errs.InvalidOperation("cannot insert after negative position %d", *o.after)
	}
	if len(beats) == 0 {
		return []Beat{}, nil
	}

	last, err := maxPosition(ctx, tx.Querier())
	if err != nil {
		return nil, err
	}

	if last > math.MaxInt64-int64(len(beats)) {
		return nil, errs.InvalidOperation("no room for %d beats after position %d", len(beats), last)
	}

	start := last + 1
	if o.after != nil && *o.after < last {
		after := *o.after
		if _, err := s.ShiftBeatsInTx(ctx, tx, after+1, int64(len(beats))); err != nil {
			return nil, err
		}
		start = after + 1
	}

	rows := make([]value.Object, len(beats))
	for i, b := range beats {
		rows[i] = b.row(start + int64(i))
	}
	created, err := s.exec.CreateItems(ctx, tx, table, rows)
	if err != nil {
		return nil, err
	}
	return fromRows(created)
}

// ShiftBeats moves every beat at or after start by amount positions.
func (s *Sequencer) ShiftBeats(ctx context.Context, start, amount int64, opts ...Option) ([]Beat, error) {
	o := buildOptions(opts)
	var out []Beat
	err := s.coord.Run(ctx, "shift beats", func(tx *txn.Tx) error {
		var err error
		out, err = s.ShiftBeatsInTx(ctx, tx, start, amount)
		return err
	}, o.unitOpts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ShiftBeatsInTx is ShiftBeats inside an open unit. It returns the moved
// beats in the order they were moved.
//
// start <= 0 would move the sentinel and start+amount <= 0 would move a
// beat onto or below it; both are INVALID_OPERATION with no change, as is
// any shift whose target position overflows int64. A backward shift that
// lands on an unshifted beat is CONSTRAINT_VIOLATION.
func (s *Sequencer) ShiftBeatsInTx(ctx context.Context, tx *txn.Tx, start, amount int64) ([]Beat, error) {
	if start <= 0 {
		return nil, errs.InvalidOperation("shift must start after the sentinel, got position %d", start)
	}
	if amount > math.MaxInt64-start {
		return nil, errs.InvalidOperation("shift of %d from position %d overflows", amount, start)
	}
	if start+amount <= 0 {
		return nil, errs.InvalidOperation("shift of %d from position %d reaches position %d", amount, start, start+amount)
	}
	if amount == 0 {
		return []Beat{}, nil
	}
	if amount > 0 {
		last, err := maxPosition(ctx, tx.Querier())
		if err != nil {
			return nil, err
		}
		if last >= start && last > math.MaxInt64-amount {
			return nil, errs.InvalidOperation("shift of %d moves position %d past the largest position", amount, last)
		}
	}

	// Forward shifts walk down from the top, backward shifts walk up, so a
	// beat always moves into a position that is already free.
	order := "position DESC"
	if amount < 0 {
		order = "position ASC"
	}
	rows, err := tx.Querier().QueryContext(ctx,
		"SELECT id, position FROM beats WHERE position >= ? AND id != ? ORDER BY "+order,
		start, SentinelID,
	)
	if err != nil {
		return nil, store.Classify(table, err)
	}
	updates, err := positionUpdates(rows, func(pos int64) int64 { return pos + amount })
	if err != nil {
		return nil, err
	}
	return s.update(ctx, tx, updates)
}

// FlattenOrder renumbers the non-sentinel beats to 1..N in position order.
func (s *Sequencer) FlattenOrder(ctx context.Context, opts ...Option) ([]Beat, error) {
	o := buildOptions(opts)
	var out []Beat
	err := s.coord.Run(ctx, "flatten beats", func(tx *txn.Tx) error {
		var err error
		out, err = s.FlattenOrderInTx(ctx, tx)
		return err
	}, o.unitOpts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FlattenOrderInTx is FlattenOrder inside an open unit. Beats already at
// their target position are not written and leave no history; the moved
// beats are returned.
func (s *Sequencer) FlattenOrderInTx(ctx context.Context, tx *txn.Tx) ([]Beat, error) {
	rows, err := tx.Querier().QueryContext(ctx,
		"SELECT id, position FROM beats WHERE id != ? ORDER BY position ASC",
		SentinelID,
	)
	if err != nil {
		return nil, store.Classify(table, err)
	}
	next := int64(0)
	updates, err := positionUpdates(rows, func(int64) int64 {
		next++
		return next
	})
	if err != nil {
		return nil, err
	}
	return s.update(ctx, tx, updates)
}

// UpdateBeats applies updates as one undo group. The sentinel is silently
// dropped from the input; if nothing else remains the call writes nothing
// and returns an empty list.
func (s *Sequencer) UpdateBeats(ctx context.Context, updates []BeatUpdate, opts ...Option) ([]Beat, error) {
	if len(withoutSentinelUpdates(updates)) == 0 {
		return []Beat{}, nil
	}
	o := buildOptions(opts)
	var out []Beat
	err := s.coord.Run(ctx, "update beats", func(tx *txn.Tx) error {
		var err error
		out, err = s.UpdateBeatsInTx(ctx, tx, updates)
		return err
	}, o.unitOpts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateBeatsInTx is UpdateBeats inside an open unit.
func (s *Sequencer) UpdateBeatsInTx(ctx context.Context, tx *txn.Tx, updates []BeatUpdate) ([]Beat, error) {
	kept := withoutSentinelUpdates(updates)
	if len(kept) == 0 {
		return []Beat{}, nil
	}
	rows := make([]value.Object, len(kept))
	for i, u := range kept {
		if u.Duration != nil {
			if err := checkDuration(*u.Duration); err != nil {
				return nil, fmt.Errorf("beat %d: %w", u.ID, err)
			}
		}
		if u.Position != nil && *u.Position <= 0 {
			return nil, errs.InvalidOperation("beat %d: position must be >= 1, got %d", u.ID, *u.Position)
		}
		rows[i] = u.row()
	}
	updated, err := s.exec.UpdateItems(ctx, tx, table, rows)
	if err != nil {
		return nil, err
	}
	return fromRows(updated)
}

// DeleteBeats removes beats and flattens the rest, as one undo group. The
// sentinel id is dropped from ids; an empty remainder is a no-op. Returns
// the deleted beats as they were before deletion.
func (s *Sequencer) DeleteBeats(ctx context.Context, ids []int64, opts ...Option) ([]Beat, error) {
	if len(withoutSentinelIDs(ids)) == 0 {
		return []Beat{}, nil
	}
	o := buildOptions(opts)
	var out []Beat
	err := s.coord.Run(ctx, "delete beats", func(tx *txn.Tx) error {
		var err error
		out, err = s.DeleteBeatsInTx(ctx, tx, ids)
		return err
	}, o.unitOpts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBeatsInTx is DeleteBeats inside an open unit.
func (s *Sequencer) DeleteBeatsInTx(ctx context.Context, tx *txn.Tx, ids []int64) ([]Beat, error) {
	kept := withoutSentinelIDs(ids)
	if len(kept) == 0 {
		return []Beat{}, nil
	}
	deleted, err := s.exec.DeleteItems(ctx, tx, table, kept)
	if err != nil {
		return nil, err
	}
	if _, err := s.FlattenOrderInTx(ctx, tx); err != nil {
		return nil, err
	}
	return fromRows(deleted)
}

// ListBeats returns every beat, sentinel first, in position order.
func (s *Sequencer) ListBeats(ctx context.Context) ([]Beat, error) {
	rows, err := s.exec.ListItems(ctx, s.coord.Store().DB(), table, "position")
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// GetBeat returns one beat by id.
func (s *Sequencer) GetBeat(ctx context.Context, id int64) (Beat, error) {
	rows, err := s.exec.GetItems(ctx, s.coord.Store().DB(), table, []int64{id})
	if err != nil {
		return Beat{}, err
	}
	return fromRow(rows[0])
}

// update moves beats through the executor, one row per statement in the
// given order.
func (s *Sequencer) update(ctx context.Context, tx *txn.Tx, rows []value.Object) ([]Beat, error) {
	if len(rows) == 0 {
		return []Beat{}, nil
	}
	updated, err := s.exec.UpdateItems(ctx, tx, table, rows)
	if err != nil {
		return nil, err
	}
	return fromRows(updated)
}

// positionUpdates reads (id, position) rows and builds an update for every
// row whose target differs from its position.
func positionUpdates(rows *sql.Rows, target func(int64) int64) ([]value.Object, error) {
	defer rows.Close()

	var updates []value.Object
	for rows.Next() {
		var id, pos int64
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, store.Classify(table, err)
		}
		if to := target(pos); to != pos {
			updates = append(updates, value.Object{
				"id":       value.Int(id),
				"position": value.Int(to),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(table, err)
	}
	return updates, nil
}

func maxPosition(ctx context.Context, q store.Querier) (int64, error) {
	var last sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT MAX(position) FROM beats").Scan(&last); err != nil {
		return 0, store.Classify(table, err)
	}
	return last.Int64, nil
}

func checkDuration(d float64) error {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return errs.InvalidOperation("duration must be a finite number >= 0, got %v", d)
	}
	return nil
}

func withoutSentinelUpdates(updates []BeatUpdate) []BeatUpdate {
	kept := make([]BeatUpdate, 0, len(updates))
	for _, u := range updates {
		if u.ID != SentinelID {
			kept = append(kept, u)
		}
	}
	return kept
}

// withoutSentinelIDs drops the sentinel and duplicate ids, keeping order.
func withoutSentinelIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == SentinelID || seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}
	return kept
}
