package crud

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/schema"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/txn"
	"github.com/roach88/cadence/internal/value"
)

// Executor runs CRUD primitives. The clock stamps created_at/updated_at.
type Executor struct {
	now func() time.Time
}

// New creates an Executor. A nil clock uses time.Now.
func New(clock func() time.Time) *Executor {
	if clock == nil {
		clock = time.Now
	}
	return &Executor{now: clock}
}

// DeleteOption configures DeleteItems.
type DeleteOption func(*deleteConfig)

type deleteConfig struct {
	column string
}

// ByColumn matches ids against column instead of the primary key. Every
// row whose column equals one of the ids is deleted.
func ByColumn(column string) DeleteOption {
	return func(c *deleteConfig) {
		c.column = column
	}
}

// CreateItems inserts rows into table and returns them as stored.
//
// Caller-supplied id, created_at and updated_at are discarded; every row of
// the call is stamped with the same instant.
func (e *Executor) CreateItems(ctx context.Context, tx *txn.Tx, table string, rows []value.Object) ([]value.Object, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}

	now := value.String(value.FormatTime(e.now()))
	prepared := make([]value.Object, len(rows))
	for i, row := range rows {
		r, err := t.Normalize(row.Without(schema.IDColumn, schema.CreatedAtColumn, schema.UpdatedAtColumn))
		if err != nil {
			return nil, err
		}
		r[schema.CreatedAtColumn] = now
		r[schema.UpdatedAtColumn] = now
		prepared[i] = r
	}

	q := tx.Querier()
	mark := tx.Mark()
	created := make([]value.Object, 0, len(prepared))
	for _, r := range prepared {
		query, args := t.InsertSQL(r)
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "create", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "create", err)
		}

		row, ok, err := t.Get(ctx, q, id)
		if err == nil && !ok {
			err = fmt.Errorf("created row %d not readable", id)
		}
		if err != nil {
			// The row is not recorded yet; remove it before compensating
			// the rest of the batch.
			if derr := history.Replay(ctx, q, history.DeleteAction(t.Name, id)); derr != nil {
				err = fmt.Errorf("%w (cleanup: %v)", err, derr)
			}
			return nil, e.abort(ctx, tx, mark, t.Name, "create", err)
		}

		tx.Record(history.InsertAction(t.Name, row), history.DeleteAction(t.Name, id))
		created = append(created, row)
	}
	return created, nil
}

// UpdateItems writes the supplied columns of each row (which must carry an
// id) and returns the rows as stored afterwards.
//
// Every id is checked first; if any is missing nothing is written and the
// NOT_FOUND error lists all missing ids. Absent keys are left untouched,
// value.Null writes NULL, and updated_at is always refreshed.
func (e *Executor) UpdateItems(ctx context.Context, tx *txn.Tx, table string, rows []value.Object) ([]value.Object, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []value.Object{}, nil
	}

	now := value.String(value.FormatTime(e.now()))
	ids := make([]int64, len(rows))
	sets := make([]value.Object, len(rows))
	for i, row := range rows {
		id, ok := row.Int(schema.IDColumn)
		if !ok {
			return nil, errs.InvalidOperation("update on %q: row %d has no integer id", t.Name, i)
		}
		if row.Has(schema.CreatedAtColumn) {
			return nil, errs.InvalidOperation("update on %q: %s is immutable", t.Name, schema.CreatedAtColumn)
		}
		set, err := t.Normalize(row.Without(schema.IDColumn, schema.UpdatedAtColumn))
		if err != nil {
			return nil, err
		}
		set[schema.UpdatedAtColumn] = now
		ids[i] = id
		sets[i] = set
	}

	q := tx.Querier()
	if err := requireExisting(ctx, q, t, schema.IDColumn, ids); err != nil {
		return nil, err
	}

	mark := tx.Mark()
	updated := make([]value.Object, 0, len(rows))
	for i, set := range sets {
		id := ids[i]
		before, ok, err := t.Get(ctx, q, id)
		if err == nil && !ok {
			err = errs.NotFound(t.Name, []int64{id})
		}
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "update", err)
		}

		query, args, err := t.UpdateSQL(id, set)
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "update", err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "update", err)
		}
		tx.Record(
			history.UpdateAction(t.Name, id, set),
			history.UpdateAction(t.Name, id, before.Pick(set.SortedKeys()...)),
		)

		after, _, err := t.Get(ctx, q, id)
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "update", err)
		}
		updated = append(updated, after)
	}
	return updated, nil
}

// DeleteItems removes the rows matching ids and returns their pre-images in
// deletion order. Ids match the primary key unless ByColumn is given.
// Every id must match at least one row; otherwise nothing is deleted and
// the NOT_FOUND error lists the unmatched ids.
func (e *Executor) DeleteItems(ctx context.Context, tx *txn.Tx, table string, ids []int64, opts ...DeleteOption) ([]value.Object, error) {
	cfg := deleteConfig{column: schema.IDColumn}
	for _, opt := range opts {
		opt(&cfg)
	}

	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	selectQuery, err := t.SelectSQL(cfg.column)
	if err != nil {
		return nil, err
	}
	if col, _ := t.Column(cfg.column); col.Kind != schema.Integer {
		return nil, errs.InvalidOperation("delete on %q: column %q is not an integer column", t.Name, cfg.column)
	}
	if len(ids) == 0 {
		return []value.Object{}, nil
	}

	q := tx.Querier()
	if err := requireExisting(ctx, q, t, cfg.column, ids); err != nil {
		return nil, err
	}

	mark := tx.Mark()
	deleted := make([]value.Object, 0, len(ids))
	for _, match := range ids {
		rows, err := q.QueryContext(ctx, selectQuery, match)
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "delete", err)
		}
		images, err := t.Scan(rows)
		if err != nil {
			return nil, e.abort(ctx, tx, mark, t.Name, "delete", err)
		}

		for _, image := range images {
			id, _ := image.Int(schema.IDColumn)
			query, args := t.DeleteSQL(id)
			if _, err := q.ExecContext(ctx, query, args...); err != nil {
				return nil, e.abort(ctx, tx, mark, t.Name, "delete", err)
			}
			tx.Record(history.DeleteAction(t.Name, id), history.InsertAction(t.Name, image))
			deleted = append(deleted, image)
		}
	}
	return deleted, nil
}

// GetItems reads rows by id, in the order given. Missing ids are NOT_FOUND.
func (e *Executor) GetItems(ctx context.Context, q store.Querier, table string, ids []int64) ([]value.Object, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	if err := requireExisting(ctx, q, t, schema.IDColumn, ids); err != nil {
		return nil, err
	}
	out := make([]value.Object, 0, len(ids))
	for _, id := range ids {
		row, ok, err := t.Get(ctx, q, id)
		if err != nil {
			return nil, store.Classify(t.Name, err)
		}
		if !ok {
			return nil, errs.NotFound(t.Name, []int64{id})
		}
		out = append(out, row)
	}
	return out, nil
}

// ListItems reads every row of table ordered by orderBy, then id.
func (e *Executor) ListItems(ctx context.Context, q store.Querier, table, orderBy string) ([]value.Object, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	query, err := t.ListSQL(orderBy)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Classify(t.Name, err)
	}
	out, err := t.Scan(rows)
	if err != nil {
		return nil, store.Classify(t.Name, err)
	}
	if out == nil {
		out = []value.Object{}
	}
	return out, nil
}

// requireExisting returns NOT_FOUND listing every id that matches no row,
// in input order without duplicates.
func requireExisting(ctx context.Context, q store.Querier, t *schema.Table, column string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, err := t.ExistingSQL(column, len(ids))
	if err != nil {
		return err
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return store.Classify(t.Name, err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return store.Classify(t.Name, err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return store.Classify(t.Name, err)
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
			found[id] = true
		}
	}
	if len(missing) > 0 {
		return errs.NotFound(t.Name, missing)
	}
	return nil
}

// abort compensates every record this primitive added to tx and returns
// the classified cause. When compensation had work to do, the cause is
// wrapped in TRANSACTION_FAILURE.
func (e *Executor) abort(ctx context.Context, tx *txn.Tx, mark int, table, op string, cause error) error {
	classified := store.Classify(table, cause)
	compensated := tx.Mark() - mark
	if err := tx.Compensate(ctx, mark); err != nil {
		failure := errs.TransactionFailure(op+" failed and compensation failed", fmt.Errorf("%w; %w", classified, err))
		failure.Table = table
		return failure
	}
	if compensated == 0 {
		return classified
	}
	failure := errs.TransactionFailure(
		fmt.Sprintf("%s failed after %d rows; batch compensated", op, compensated),
		classified,
	)
	failure.Table = table
	return failure
}
