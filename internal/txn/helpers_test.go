package txn

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
	"github.com/roach88/cadence/internal/value"
)

const stamp = "2024-01-01T00:00:00Z"

func newCoordinator(t *testing.T, opts ...Option) (*Coordinator, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(testutil.NewSequentialIDs("")),
	}
	return New(st, append(base, opts...)...), st
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

// createBeat inserts a beat inside the unit and records it.
func createBeat(ctx context.Context, tx *Tx, id, position int64, duration float64) error {
	row := beatRow(id, position, duration)
	if err := history.Replay(ctx, tx.Querier(), history.InsertAction("beats", row)); err != nil {
		return err
	}
	tx.Record(history.InsertAction("beats", row), history.DeleteAction("beats", id))
	return nil
}

// moveBeat changes a beat's position inside the unit and records it.
func moveBeat(ctx context.Context, tx *Tx, id, from, to int64) error {
	set := value.Object{"position": value.Int(to)}
	if err := history.Replay(ctx, tx.Querier(), history.UpdateAction("beats", id, set)); err != nil {
		return err
	}
	tx.Record(
		history.UpdateAction("beats", id, set),
		history.UpdateAction("beats", id, value.Object{"position": value.Int(from)}),
	)
	return nil
}

// positions returns id → position for every beat, sentinel included.
func positions(t *testing.T, st *store.Store) map[int64]int64 {
	t.Helper()
	rows, err := st.DB().Query("SELECT id, position FROM beats ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, pos int64
		require.NoError(t, rows.Scan(&id, &pos))
		out[id] = pos
	}
	require.NoError(t, rows.Err())
	return out
}

func groupCount(t *testing.T, st *store.Store, kind history.Kind) int {
	t.Helper()
	n, err := history.NewLedger(st.DB()).CountGroups(context.Background(), kind)
	require.NoError(t, err)
	return n
}
