package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/value"
)

const stamp = "2024-01-01T00:00:00Z"

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func beatRow(id, position int64, duration float64) value.Object {
	return value.Object{
		"id":                 value.Int(id),
		"position":           value.Int(position),
		"duration":           value.Float(duration),
		"include_in_measure": value.Bool(true),
		"notes":              value.Null{},
		"created_at":         value.String(stamp),
		"updated_at":         value.String(stamp),
	}
}

// createRecord is the record a create of row leaves in the undo ledger.
func createRecord(row value.Object) Record {
	id, _ := row.Int("id")
	return Record{
		Action:    DeleteAction("beats", id),
		ReverseOf: InsertAction("beats", row),
	}
}
