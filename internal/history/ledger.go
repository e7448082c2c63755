package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/value"
)

// Ledger reads and writes both history ledgers through one Querier.
// A Ledger is cheap; build one per transaction.
type Ledger struct {
	q store.Querier
}

// NewLedger returns a Ledger bound to q.
func NewLedger(q store.Querier) *Ledger {
	return &Ledger{q: q}
}

// Group is one consumable group of records, as listed for inspection.
type Group struct {
	ID      int64
	Label   string
	Records []Record
}

// ReserveGroup increments the ledger's group counter and returns the new
// value. Group ids are therefore strictly increasing for the life of the
// database, even across Clear.
func (l *Ledger) ReserveGroup(ctx context.Context, kind Kind) (int64, error) {
	var group int64
	err := l.q.QueryRowContext(ctx, `
		INSERT INTO history_counters (ledger, last_group) VALUES (?, 1)
		ON CONFLICT(ledger) DO UPDATE SET last_group = last_group + 1
		RETURNING last_group
	`, string(kind)).Scan(&group)
	if err != nil {
		return 0, fmt.Errorf("reserve %s group: %w", kind, err)
	}
	return group, nil
}

// ReleaseGroup decrements the counter, undoing the latest ReserveGroup.
func (l *Ledger) ReleaseGroup(ctx context.Context, kind Kind) error {
	_, err := l.q.ExecContext(ctx, `
		UPDATE history_counters SET last_group = last_group - 1
		WHERE ledger = ? AND last_group > 0
	`, string(kind))
	if err != nil {
		return fmt.Errorf("release %s group: %w", kind, err)
	}
	return nil
}

// CurrentGroup returns the counter value without changing it.
func (l *Ledger) CurrentGroup(ctx context.Context, kind Kind) (int64, error) {
	var group int64
	err := l.q.QueryRowContext(ctx,
		"SELECT last_group FROM history_counters WHERE ledger = ?", string(kind),
	).Scan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current %s group: %w", kind, err)
	}
	return group, nil
}

// Append writes records under group. Orders continue after the highest
// order already stored for the group, so a merged unit extends it.
// The records' ID, Group and Order fields are ignored.
func (l *Ledger) Append(ctx context.Context, kind Kind, group int64, label string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	table, err := kind.table()
	if err != nil {
		return err
	}

	var base int64
	err = l.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(order_in_group), 0) FROM %s WHERE group_id = ?", table),
		group,
	).Scan(&base)
	if err != nil {
		return fmt.Errorf("append %s: read max order: %w", kind, err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (action, table_name, payload, reverse_action, group_id, order_in_group, label)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, table)

	for i, r := range records {
		payload, err := value.MarshalCanonical(r.Action.Payload)
		if err != nil {
			return fmt.Errorf("append %s: encode payload: %w", kind, err)
		}
		reverse, err := encodeAction(r.ReverseOf)
		if err != nil {
			return fmt.Errorf("append %s: %w", kind, err)
		}
		_, err = l.q.ExecContext(ctx, insert,
			string(r.Action.Kind),
			r.Action.Table,
			string(payload),
			reverse,
			group,
			base+int64(i)+1,
			label,
		)
		if err != nil {
			return fmt.Errorf("append %s record %d: %w", kind, i, err)
		}
	}
	return nil
}

// Trim keeps the keep most recent groups and deletes the rest, oldest
// first. keep <= 0 disables trimming.
func (l *Ledger) Trim(ctx context.Context, kind Kind, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	table, err := kind.table()
	if err != nil {
		return 0, err
	}

	res, err := l.q.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %[1]s WHERE group_id NOT IN (
			SELECT DISTINCT group_id FROM %[1]s ORDER BY group_id DESC LIMIT ?
		)
	`, table), keep)
	if err != nil {
		return 0, fmt.Errorf("trim %s: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LatestGroup returns the highest group id present. ok is false when the
// ledger is empty.
func (l *Ledger) LatestGroup(ctx context.Context, kind Kind) (int64, bool, error) {
	table, err := kind.table()
	if err != nil {
		return 0, false, err
	}
	var group sql.NullInt64
	if err := l.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT MAX(group_id) FROM %s", table),
	).Scan(&group); err != nil {
		return 0, false, fmt.Errorf("latest %s group: %w", kind, err)
	}
	return group.Int64, group.Valid, nil
}

// PopLatestGroup returns every record of the highest group, ordered by
// order_in_group descending (last applied first). It does not delete them;
// the caller consumes the group with DeleteGroup in the same transaction.
// An empty ledger yields no records.
//
// Every record is decoded and validated before returning, so a caller that
// mutates only after PopLatestGroup succeeds never applies part of a
// corrupt group.
func (l *Ledger) PopLatestGroup(ctx context.Context, kind Kind) ([]Record, error) {
	group, ok, err := l.LatestGroup(ctx, kind)
	if err != nil || !ok {
		return nil, err
	}
	return l.readGroup(ctx, kind, group, true)
}

// DeleteGroup removes every record of group.
func (l *Ledger) DeleteGroup(ctx context.Context, kind Kind, group int64) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	if _, err := l.q.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE group_id = ?", table), group,
	); err != nil {
		return fmt.Errorf("delete %s group %d: %w", kind, group, err)
	}
	return nil
}

// Clear removes every record of the ledger. Counters are kept.
func (l *Ledger) Clear(ctx context.Context, kind Kind) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	if _, err := l.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	return nil
}

// CountGroups returns the number of distinct groups in the ledger.
func (l *Ledger) CountGroups(ctx context.Context, kind Kind) (int, error) {
	table, err := kind.table()
	if err != nil {
		return 0, err
	}
	var n int
	if err := l.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT group_id) FROM %s", table),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s groups: %w", kind, err)
	}
	return n, nil
}

// LatestLabel returns the label of the highest group, or "" when the
// ledger is empty. It does not decode records.
func (l *Ledger) LatestLabel(ctx context.Context, kind Kind) (string, error) {
	table, err := kind.table()
	if err != nil {
		return "", err
	}
	var label string
	err = l.q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT label FROM %[1]s
		WHERE group_id = (SELECT MAX(group_id) FROM %[1]s)
		ORDER BY order_in_group LIMIT 1
	`, table)).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest %s label: %w", kind, err)
	}
	return label, nil
}

// List returns up to limit groups, newest first, each with its records in
// ascending order. limit <= 0 lists every group.
func (l *Ledger) List(ctx context.Context, kind Kind, limit int) ([]Group, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT DISTINCT group_id FROM %s ORDER BY group_id DESC", table)
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	groups := make([]Group, 0, len(ids))
	for _, id := range ids {
		records, err := l.readGroup(ctx, kind, id, false)
		if err != nil {
			return nil, err
		}
		g := Group{ID: id, Records: records}
		if len(records) > 0 {
			g.Label = records[0].Label
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// readGroup loads and decodes one group.
func (l *Ledger) readGroup(ctx context.Context, kind Kind, group int64, descending bool) ([]Record, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}

	rows, err := l.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, action, table_name, payload, reverse_action, group_id, order_in_group, label
		FROM %s WHERE group_id = ?
		ORDER BY order_in_group %s
	`, table, dir), group)
	if err != nil {
		return nil, fmt.Errorf("read %s group %d: %w", kind, group, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                                  Record
			action, tableName, payload, revers string
		)
		if err := rows.Scan(&r.ID, &action, &tableName, &payload, &revers, &r.Group, &r.Order, &r.Label); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", kind, err)
		}
		if err := decodeRecord(&r, action, tableName, payload, revers); err != nil {
			corrupt := errs.CorruptHistory("%s ledger row %d: %v", kind, r.ID, err)
			corrupt.Table = tableName
			corrupt.Err = err
			return nil, corrupt
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s group %d: %w", kind, group, err)
	}
	return records, nil
}

func decodeRecord(r *Record, action, tableName, payload, reverse string) error {
	obj, err := value.UnmarshalObject([]byte(payload))
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	r.Action = Action{Kind: ActionKind(action), Table: tableName, Payload: obj}
	if err := r.Action.Validate(); err != nil {
		return fmt.Errorf("action: %w", err)
	}

	r.ReverseOf, err = decodeAction(reverse)
	if err != nil {
		return fmt.Errorf("reverse_action: %w", err)
	}
	if err := r.ReverseOf.Validate(); err != nil {
		return fmt.Errorf("reverse_action: %w", err)
	}
	return nil
}
