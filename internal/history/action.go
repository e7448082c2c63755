package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/cadence/internal/schema"
	"github.com/roach88/cadence/internal/value"
)

// Kind names a ledger.
type Kind string

const (
	Undo Kind = "undo"
	Redo Kind = "redo"
)

// Opposite returns the ledger that receives a consumed group.
func (k Kind) Opposite() Kind {
	if k == Undo {
		return Redo
	}
	return Undo
}

// table returns the SQL table backing the ledger.
func (k Kind) table() (string, error) {
	switch k {
	case Undo:
		return "history_undo", nil
	case Redo:
		return "history_redo", nil
	default:
		return "", fmt.Errorf("unknown ledger %q", string(k))
	}
}

// ActionKind is the statement an Action performs.
type ActionKind string

const (
	Insert ActionKind = "insert"
	Update ActionKind = "update"
	Delete ActionKind = "delete"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// Action is one replayable statement against an entity table.
//
// Payload shape depends on Kind:
//   - Insert: the full row including id
//   - Update: id plus the columns to set
//   - Delete: {"id": n}
type Action struct {
	Kind    ActionKind
	Table   string
	Payload value.Object
}

// RowID returns the id the action targets.
func (a Action) RowID() (int64, bool) {
	return a.Payload.Int(schema.IDColumn)
}

// InsertAction builds the action that re-creates row.
func InsertAction(table string, row value.Object) Action {
	return Action{Kind: Insert, Table: table, Payload: row.Clone()}
}

// UpdateAction builds the action that sets columns on row id.
func UpdateAction(table string, id int64, set value.Object) Action {
	payload := set.Without(schema.IDColumn)
	payload[schema.IDColumn] = value.Int(id)
	return Action{Kind: Update, Table: table, Payload: payload}
}

// DeleteAction builds the action that removes row id.
func DeleteAction(table string, id int64) Action {
	return Action{Kind: Delete, Table: table, Payload: value.Object{schema.IDColumn: value.Int(id)}}
}

// Validate checks that the action can be replayed: known kind, whitelisted
// table and columns, and an integer id in the payload.
func (a Action) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown action kind %q", string(a.Kind))
	}
	t, err := schema.Lookup(a.Table)
	if err != nil {
		return err
	}
	if _, ok := a.RowID(); !ok {
		return fmt.Errorf("%s on %s: payload has no integer id", a.Kind, a.Table)
	}
	if _, err := t.Normalize(a.Payload); err != nil {
		return err
	}
	if a.Kind == Delete && len(a.Payload) != 1 {
		return fmt.Errorf("delete on %s: payload must hold only id", a.Table)
	}
	if a.Kind == Update && len(a.Payload) < 2 {
		return fmt.Errorf("update on %s: payload sets no columns", a.Table)
	}
	return nil
}

// actionJSON is the stored form of an Action inside reverse_action.
// Fields are declared in key order so the encoding is canonical.
type actionJSON struct {
	Action    ActionKind   `json:"action"`
	Payload   value.Object `json:"payload"`
	TableName string       `json:"table_name"`
}

func encodeAction(a Action) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(actionJSON{Action: a.Kind, Payload: a.Payload, TableName: a.Table}); err != nil {
		return "", fmt.Errorf("encode action: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeAction(data string) (Action, error) {
	var aj actionJSON
	if err := json.Unmarshal([]byte(data), &aj); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return Action{Kind: aj.Action, Table: aj.TableName, Payload: aj.Payload}, nil
}

// Record is one ledger row.
type Record struct {
	// ID is the ledger row id (zero before Append).
	ID int64

	// Group scopes the user action the record belongs to.
	Group int64

	// Order is the record's position within its group, from 1.
	Order int64

	// Label names the unit that produced the group.
	Label string

	// Action is what consuming the record applies.
	Action Action

	// ReverseOf is the forward action that Action reverses.
	ReverseOf Action
}

// Applied is a record that has just been consumed. It is built fresh on
// every consumption and never points back at the record it came from.
type Applied struct {
	Action    Action
	ReverseOf Action
}

// Consume returns the Applied form of r.
func (r Record) Consume() Applied {
	return Applied{Action: r.Action, ReverseOf: r.ReverseOf}
}

// Flip returns the record to append to the opposite ledger: consuming it
// re-applies ReverseOf, and its own reverse is the action just applied.
func (a Applied) Flip() Record {
	return Record{Action: a.ReverseOf, ReverseOf: a.Action}
}
