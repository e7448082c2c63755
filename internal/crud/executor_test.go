package crud

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
	"github.com/roach88/cadence/internal/txn"
	"github.com/roach88/cadence/internal/value"
)

type fixture struct {
	st    *store.Store
	coord *txn.Coordinator
	exec  *Executor
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewDeterministicClock()
	return &fixture{
		st: st,
		coord: txn.New(st,
			txn.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			txn.WithIDGenerator(testutil.NewSequentialIDs("")),
		),
		exec:  New(clock.Now),
		clock: clock,
	}
}

func (f *fixture) create(t *testing.T, rows ...value.Object) []value.Object {
	t.Helper()
	var out []value.Object
	err := f.coord.Run(context.Background(), "create", func(tx *txn.Tx) error {
		var err error
		out, err = f.exec.CreateItems(context.Background(), tx, "beats", rows)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) list(t *testing.T) []value.Object {
	t.Helper()
	rows, err := f.exec.ListItems(context.Background(), f.st.DB(), "beats", "position")
	require.NoError(t, err)
	return rows
}

func (f *fixture) undoGroups(t *testing.T) int {
	t.Helper()
	n, err := history.NewLedger(f.st.DB()).CountGroups(context.Background(), history.Undo)
	require.NoError(t, err)
	return n
}

func beat(position int64, duration float64) value.Object {
	return value.Object{"position": value.Int(position), "duration": value.Float(duration)}
}

func TestCreateItems_StripsIDAndStampsTimes(t *testing.T) {
	f := newFixture(t)

	in := beat(1, 0.5)
	in["id"] = value.Int(99)
	in["created_at"] = value.String("1999-01-01T00:00:00Z")
	created := f.create(t, in, beat(2, 0.75))

	require.Len(t, created, 2)
	id0, _ := created[0].Int("id")
	id1, _ := created[1].Int("id")
	assert.Equal(t, int64(1), id0)
	assert.Equal(t, int64(2), id1)

	stamp := value.String(value.FormatTime(testutil.Epoch))
	for _, row := range created {
		assert.Equal(t, stamp, row["created_at"])
		assert.Equal(t, stamp, row["updated_at"])
		assert.Equal(t, value.Bool(true), row["include_in_measure"], "schema default is read back")
	}
	assert.Equal(t, int64(1), f.clock.Ticks(), "one timestamp per call")
	assert.Equal(t, 1, f.undoGroups(t))
}

func TestCreateItems_RecordsFullRowForRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, beat(1, 0.5))
	_, err := f.coord.Undo(ctx)
	require.NoError(t, err)
	assert.Len(t, f.list(t), 1)

	_, err = f.coord.Redo(ctx)
	require.NoError(t, err)
	rows := f.list(t)
	require.Len(t, rows, 2)
	assert.True(t, created[0].Equal(rows[1]), "redo recreates the identical row: %v vs %v", created[0], rows[1])
}

func TestCreateItems_RejectsBeforeTouchingStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.coord.Run(ctx, "create", func(tx *txn.Tx) error {
		_, err := f.exec.CreateItems(ctx, tx, "beats", []value.Object{
			beat(1, 0.5),
			{"position": value.Int(2), "tempo": value.Int(120)},
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidOperation(err))
	assert.Len(t, f.list(t), 1)

	err = f.coord.Run(ctx, "create", func(tx *txn.Tx) error {
		_, err := f.exec.CreateItems(ctx, tx, "users", []value.Object{beat(1, 1)})
		return err
	})
	assert.True(t, errs.IsInvalidOperation(err))
}

func TestCreateItems_PartialFailureCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var records int
	err := f.coord.Run(ctx, "create", func(tx *txn.Tx) error {
		_, err := f.exec.CreateItems(ctx, tx, "beats", []value.Object{
			beat(1, 0.5),
			beat(2, 0.5),
			beat(1, 0.5), // duplicate position
		})
		require.Error(t, err)
		assert.True(t, errs.IsTransactionFailure(err))
		assert.True(t, errs.IsConstraintViolation(err))

		// The batch is gone inside the still-open unit.
		records = len(tx.Records())
		var n int
		require.NoError(t, tx.Querier().QueryRowContext(ctx, "SELECT COUNT(*) FROM beats").Scan(&n))
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, records)
	assert.Equal(t, 0, f.undoGroups(t))
}

func TestCreateItems_FirstRowFailureIsPlainConstraintViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.coord.Run(ctx, "create", func(tx *txn.Tx) error {
		_, err := f.exec.CreateItems(ctx, tx, "beats", []value.Object{beat(0, 1)})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, errs.CodeConstraintViolation, errs.CodeOf(err))
}

func TestUpdateItems_WritesOnlySuppliedColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, value.Object{
		"position": value.Int(1),
		"duration": value.Float(0.5),
		"notes":    value.String("pickup"),
	})

	var updated []value.Object
	require.NoError(t, f.coord.Run(ctx, "update", func(tx *txn.Tx) error {
		var err error
		updated, err = f.exec.UpdateItems(ctx, tx, "beats", []value.Object{
			{"id": value.Int(1), "duration": value.Float(2)},
		})
		return err
	}))

	require.Len(t, updated, 1)
	assert.Equal(t, value.Float(2), updated[0]["duration"])
	assert.Equal(t, value.String("pickup"), updated[0]["notes"], "absent key untouched")
	assert.Equal(t, value.Int(1), updated[0]["position"])
	assert.Equal(t, value.String(value.FormatTime(testutil.Epoch)), updated[0]["created_at"])
	assert.NotEqual(t, updated[0]["created_at"], updated[0]["updated_at"], "updated_at refreshed")
}

func TestUpdateItems_ExplicitNullWritesNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, value.Object{
		"position": value.Int(1),
		"duration": value.Float(0.5),
		"notes":    value.String("pickup"),
	})

	require.NoError(t, f.coord.Run(ctx, "update", func(tx *txn.Tx) error {
		_, err := f.exec.UpdateItems(ctx, tx, "beats", []value.Object{
			{"id": value.Int(1), "notes": value.Null{}},
		})
		return err
	}))
	rows := f.list(t)
	assert.Equal(t, value.Null{}, rows[1]["notes"])

	// Undo restores the text and the old updated_at.
	_, err := f.coord.Undo(ctx)
	require.NoError(t, err)
	rows = f.list(t)
	assert.Equal(t, value.String("pickup"), rows[1]["notes"])
	assert.Equal(t, rows[1]["created_at"], rows[1]["updated_at"])
}

func TestUpdateItems_ReportsAllMissingIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, beat(1, 0.5), beat(2, 0.5))

	err := f.coord.Run(ctx, "update", func(tx *txn.Tx) error {
		_, err := f.exec.UpdateItems(ctx, tx, "beats", []value.Object{
			{"id": value.Int(1), "duration": value.Float(9)},
			{"id": value.Int(7), "duration": value.Float(9)},
			{"id": value.Int(2), "duration": value.Float(9)},
			{"id": value.Int(8), "duration": value.Float(9)},
		})
		assert.Empty(t, tx.Records())
		return err
	})
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []int64{7, 8}, e.IDs)
	assert.Equal(t, "beats", e.Table)

	for _, row := range f.list(t)[1:] {
		assert.Equal(t, value.Float(0.5), row["duration"], "zero rows mutated")
	}
	assert.Equal(t, 1, f.undoGroups(t))
}

func TestUpdateItems_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, beat(1, 0.5))

	tests := []struct {
		name string
		row  value.Object
	}{
		{"missing id", value.Object{"duration": value.Float(1)}},
		{"created_at", value.Object{"id": value.Int(1), "created_at": value.String("x")}},
		{"unknown column", value.Object{"id": value.Int(1), "tempo": value.Int(1)}},
		{"null in required column", value.Object{"id": value.Int(1), "duration": value.Null{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.coord.Run(ctx, "update", func(tx *txn.Tx) error {
				_, err := f.exec.UpdateItems(ctx, tx, "beats", []value.Object{tt.row})
				return err
			})
			require.Error(t, err)
			assert.True(t, errs.IsInvalidOperation(err), "got %v", err)
		})
	}
}

func TestUpdateItems_PartialFailureCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, beat(1, 0.5), beat(2, 0.5), beat(3, 0.5))

	err := f.coord.Run(ctx, "update", func(tx *txn.Tx) error {
		_, err := f.exec.UpdateItems(ctx, tx, "beats", []value.Object{
			{"id": value.Int(3), "position": value.Int(10)},
			{"id": value.Int(1), "position": value.Int(2)}, // collides with beat 2
		})
		require.Error(t, err)
		assert.True(t, errs.IsTransactionFailure(err))

		var pos int64
		require.NoError(t, tx.Querier().QueryRowContext(ctx, "SELECT position FROM beats WHERE id = 3").Scan(&pos))
		assert.Equal(t, int64(3), pos, "first update compensated")
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.undoGroups(t))
}

func TestDeleteItems_ReturnsPreImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, beat(1, 0.5), beat(2, 0.75))

	var deleted []value.Object
	require.NoError(t, f.coord.Run(ctx, "delete", func(tx *txn.Tx) error {
		var err error
		deleted, err = f.exec.DeleteItems(ctx, tx, "beats", []int64{2, 1})
		return err
	}))

	require.Len(t, deleted, 2)
	assert.True(t, created[1].Equal(deleted[0]))
	assert.True(t, created[0].Equal(deleted[1]))
	assert.Len(t, f.list(t), 1)

	_, err := f.coord.Undo(ctx)
	require.NoError(t, err)
	rows := f.list(t)
	require.Len(t, rows, 3)
	assert.True(t, created[0].Equal(rows[1]))
	assert.True(t, created[1].Equal(rows[2]))
}

func TestDeleteItems_MissingIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, beat(1, 0.5))

	err := f.coord.Run(ctx, "delete", func(tx *txn.Tx) error {
		_, err := f.exec.DeleteItems(ctx, tx, "beats", []int64{1, 5, 5})
		return err
	})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.CodeNotFound, e.Code)
	assert.Equal(t, []int64{5}, e.IDs)
	assert.Len(t, f.list(t), 2)
}

func TestDeleteItems_ByColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, beat(1, 0.5), beat(2, 0.5))

	require.NoError(t, f.coord.Run(ctx, "measures", func(tx *txn.Tx) error {
		_, err := f.exec.CreateItems(ctx, tx, "measures", []value.Object{
			{"start_beat": value.Int(1)},
			{"start_beat": value.Int(2)},
		})
		return err
	}))

	var deleted []value.Object
	require.NoError(t, f.coord.Run(ctx, "delete measures", func(tx *txn.Tx) error {
		var err error
		deleted, err = f.exec.DeleteItems(ctx, tx, "measures", []int64{2}, ByColumn("start_beat"))
		return err
	}))
	require.Len(t, deleted, 1)
	assert.Equal(t, value.Int(2), deleted[0]["start_beat"])

	err := f.coord.Run(ctx, "delete measures", func(tx *txn.Tx) error {
		_, err := f.exec.DeleteItems(ctx, tx, "measures", []int64{1}, ByColumn("rehearsal_mark"))
		return err
	})
	assert.True(t, errs.IsInvalidOperation(err))

	err = f.coord.Run(ctx, "delete measures", func(tx *txn.Tx) error {
		_, err := f.exec.DeleteItems(ctx, tx, "measures", []int64{1}, ByColumn("1=1"))
		return err
	})
	assert.True(t, errs.IsInvalidOperation(err))
}

func TestGetItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, beat(1, 0.5), beat(2, 0.75))

	rows, err := f.exec.GetItems(ctx, f.st.DB(), "beats", []int64{2, 0})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, value.Float(0.75), rows[0]["duration"])
	assert.Equal(t, value.Int(0), rows[1]["position"])

	_, err = f.exec.GetItems(ctx, f.st.DB(), "beats", []int64{3})
	assert.True(t, errs.IsNotFound(err))
}

func TestNew_NilClockUsesTimeNow(t *testing.T) {
	e := New(nil)
	assert.False(t, e.now().IsZero())
}
