package history

import (
	"context"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/schema"
	"github.com/roach88/cadence/internal/store"
)

// Replay executes a against q.
//
// Inserts carry their explicit id so a redone create reproduces the exact
// row. An update or delete that matches no row means the data drifted from
// the ledger; it is reported as NOT_FOUND and the caller rolls back.
func Replay(ctx context.Context, q store.Querier, a Action) error {
	if err := a.Validate(); err != nil {
		return errs.CorruptHistory("replay: %v", err)
	}
	t, err := schema.Lookup(a.Table)
	if err != nil {
		return err
	}
	payload, err := t.Normalize(a.Payload)
	if err != nil {
		return err
	}
	id, _ := a.RowID()

	var (
		query string
		args  []any
	)
	switch a.Kind {
	case Insert:
		query, args = t.InsertSQL(payload)
	case Update:
		query, args, err = t.UpdateSQL(id, payload)
		if err != nil {
			return err
		}
	case Delete:
		query, args = t.DeleteSQL(id)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return store.Classify(a.Table, err)
	}
	if a.Kind != Insert {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errs.NotFound(a.Table, []int64{id})
		}
	}
	return nil
}
