package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/value"
)

// ColumnKind is the storage class a column's values are normalized to.
type ColumnKind int

const (
	Integer ColumnKind = iota
	Real
	Text
	Boolean
)

// String returns the lowercase name of the kind.
func (k ColumnKind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Text:
		return "text"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one whitelisted column.
type Column struct {
	Name     string
	Kind     ColumnKind
	Nullable bool
}

// Timestamp columns stamped by the executor.
const (
	IDColumn        = "id"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
)

// Table is the whitelist entry for one table. Columns are in definition
// order; generated SQL lists columns in that order.
type Table struct {
	Name    string
	Columns []Column
}

// Table names.
const (
	Beats    = "beats"
	Measures = "measures"
)

var registry = map[string]*Table{
	Beats: {
		Name: Beats,
		Columns: []Column{
			{Name: IDColumn, Kind: Integer},
			{Name: "position", Kind: Integer},
			{Name: "duration", Kind: Real},
			{Name: "include_in_measure", Kind: Boolean},
			{Name: "notes", Kind: Text, Nullable: true},
			{Name: CreatedAtColumn, Kind: Text},
			{Name: UpdatedAtColumn, Kind: Text},
		},
	},
	Measures: {
		Name: Measures,
		Columns: []Column{
			{Name: IDColumn, Kind: Integer},
			{Name: "start_beat", Kind: Integer},
			{Name: "rehearsal_mark", Kind: Text, Nullable: true},
			{Name: "notes", Kind: Text, Nullable: true},
			{Name: CreatedAtColumn, Kind: Text},
			{Name: UpdatedAtColumn, Kind: Text},
		},
	},
}

// Lookup returns the whitelist entry for name.
// Unknown tables are INVALID_OPERATION.
func Lookup(name string) (*Table, error) {
	t, ok := registry[name]
	if !ok {
		return nil, errs.InvalidOperation("unknown table %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// Names returns all registered table names in sorted order.
func Names() []string {
	return []string{Beats, Measures}
}

// Column returns the column definition for name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in definition order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Normalize checks every key of row against the whitelist and converts each
// value to its column's kind: Int for integer columns, Float for real
// columns, Bool for boolean columns (SQLite stores them as 0/1), NFC
// strings for text columns. Invalid UTF-8 is rejected.
// A Null is accepted only for nullable columns.
func (t *Table) Normalize(row value.Object) (value.Object, error) {
	out := make(value.Object, len(row))
	for _, key := range row.SortedKeys() {
		col, ok := t.Column(key)
		if !ok {
			return nil, errs.InvalidOperation("unknown column %q on table %q", key, t.Name)
		}
		v, err := coerce(col, row[key])
		if err != nil {
			return nil, &errs.Error{
				Code:    errs.CodeInvalidOperation,
				Message: err.Error(),
				Table:   t.Name,
			}
		}
		out[key] = v
	}
	return out, nil
}

func coerce(col Column, v value.Value) (value.Value, error) {
	if v == nil {
		v = value.Null{}
	}
	if _, isNull := v.(value.Null); isNull {
		if !col.Nullable {
			return nil, fmt.Errorf("column %q cannot be null", col.Name)
		}
		return v, nil
	}

	switch col.Kind {
	case Integer:
		obj := value.Object{col.Name: v}
		if n, ok := obj.Int(col.Name); ok {
			return value.Int(n), nil
		}
	case Real:
		obj := value.Object{col.Name: v}
		if f, ok := obj.Float(col.Name); ok {
			return value.Float(f), nil
		}
	case Boolean:
		obj := value.Object{col.Name: v}
		if b, ok := obj.Bool(col.Name); ok {
			return value.Bool(b), nil
		}
	case Text:
		if s, ok := v.(value.String); ok {
			// Stored text is NFC so the row and its ledger payload hold the
			// same bytes.
			if !utf8.ValidString(string(s)) {
				return nil, fmt.Errorf("column %q is not valid UTF-8", col.Name)
			}
			return value.String(norm.NFC.String(string(s))), nil
		}
	}
	return nil, fmt.Errorf("column %q expects %s, got %T", col.Name, col.Kind, v)
}

// orderedKeys returns the keys of row in column definition order.
// Keys must already be whitelisted.
func (t *Table) orderedKeys(row value.Object) []string {
	keys := make([]string, 0, len(row))
	for _, c := range t.Columns {
		if row.Has(c.Name) {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// InsertSQL builds an INSERT for the given (normalized) row.
func (t *Table) InsertSQL(row value.Object) (string, []any) {
	keys := t.orderedKeys(row)
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = value.ToDriver(row[k])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(keys, ", "), placeholders)
	return query, args
}

// UpdateSQL builds "UPDATE t SET a = ?, b = ? WHERE id = ?". The set map
// must not contain id and must not be empty.
func (t *Table) UpdateSQL(id int64, set value.Object) (string, []any, error) {
	keys := t.orderedKeys(set.Without(IDColumn))
	if len(keys) == 0 {
		return "", nil, errs.InvalidOperation("update on %q has no columns to set", t.Name)
	}
	assignments := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		assignments[i] = k + " = ?"
		args = append(args, value.ToDriver(set[k]))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		t.Name, strings.Join(assignments, ", "), IDColumn)
	return query, args, nil
}

// DeleteSQL builds "DELETE FROM t WHERE id = ?".
func (t *Table) DeleteSQL(id int64) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, IDColumn), []any{id}
}

// SelectSQL builds a SELECT of every column filtered on column = ?,
// ordered by id. column must be whitelisted.
func (t *Table) SelectSQL(column string) (string, error) {
	if _, ok := t.Column(column); !ok {
		return "", errs.InvalidOperation("unknown column %q on table %q", column, t.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s",
		strings.Join(t.ColumnNames(), ", "), t.Name, column, IDColumn), nil
}

// ListSQL builds a SELECT of every row ordered by orderBy then id.
// An empty orderBy orders by id alone.
func (t *Table) ListSQL(orderBy string) (string, error) {
	order := IDColumn
	if orderBy != "" && orderBy != IDColumn {
		if _, ok := t.Column(orderBy); !ok {
			return "", errs.InvalidOperation("unknown column %q on table %q", orderBy, t.Name)
		}
		order = orderBy + ", " + IDColumn
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(t.ColumnNames(), ", "), t.Name, order), nil
}

// ExistingSQL builds a query returning which of n candidate values exist
// in column.
func (t *Table) ExistingSQL(column string, n int) (string, error) {
	if _, ok := t.Column(column); !ok {
		return "", errs.InvalidOperation("unknown column %q on table %q", column, t.Name)
	}
	if n <= 0 {
		return "", fmt.Errorf("existing query needs at least one value")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IN (%s)",
		column, t.Name, column, placeholders), nil
}

// Scan reads rows produced by SelectSQL or ListSQL into normalized objects.
func (t *Table) Scan(rows *sql.Rows) ([]value.Object, error) {
	defer rows.Close()

	var out []value.Object
	for rows.Next() {
		raw := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}

		row := make(value.Object, len(t.Columns))
		for i, c := range t.Columns {
			v, err := value.FromDriver(raw[i])
			if err != nil {
				return nil, fmt.Errorf("scan %s.%s: %w", t.Name, c.Name, err)
			}
			row[c.Name] = v
		}
		normalized, err := t.Normalize(row)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		out = append(out, normalized)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.Name, err)
	}
	return out, nil
}

// Querier is the subset of store.Querier the read helpers need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Get reads the row with the given id. ok is false if it does not exist.
func (t *Table) Get(ctx context.Context, q Querier, id int64) (value.Object, bool, error) {
	query, err := t.SelectSQL(IDColumn)
	if err != nil {
		return nil, false, err
	}
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, false, fmt.Errorf("get %s %d: %w", t.Name, id, err)
	}
	found, err := t.Scan(rows)
	if err != nil {
		return nil, false, err
	}
	if len(found) == 0 {
		return nil, false, nil
	}
	return found[0], true, nil
}
