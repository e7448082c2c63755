package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/value"
)

func TestLookup(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)
	assert.Equal(t, "beats", beats.Name)

	_, err = Lookup("users; DROP TABLE beats")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidOperation(err))
	assert.Contains(t, err.Error(), "known: beats, measures")
}

func TestNames_AllRegistered(t *testing.T) {
	for _, name := range Names() {
		_, err := Lookup(name)
		assert.NoError(t, err, name)
	}
	assert.Len(t, Names(), len(registry))
}

func TestNormalize_CoercesKinds(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	got, err := beats.Normalize(value.Object{
		"position":           value.Float(3),
		"duration":           value.Int(1),
		"include_in_measure": value.Int(0),
		"notes":              value.Null{},
	})
	require.NoError(t, err)

	assert.Equal(t, value.Int(3), got["position"])
	assert.Equal(t, value.Float(1), got["duration"])
	assert.Equal(t, value.Bool(false), got["include_in_measure"])
	assert.Equal(t, value.Null{}, got["notes"])
}

func TestNormalize_TextIsNFC(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	got, err := beats.Normalize(value.Object{"notes": value.String("Cafe\u0301")})
	require.NoError(t, err)
	assert.Equal(t, value.String("Caf\u00e9"), got["notes"])

	got, err = beats.Normalize(value.Object{"notes": value.String("Caf\u00e9")})
	require.NoError(t, err)
	assert.Equal(t, value.String("Caf\u00e9"), got["notes"])
}

func TestNormalize_RejectsInvalidUTF8(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	_, err = beats.Normalize(value.Object{"notes": value.String("ab\xffcd")})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidOperation(err))
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestNormalize_RejectsUnknownColumn(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	_, err = beats.Normalize(value.Object{"tempo": value.Int(120)})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidOperation(err))
	assert.Contains(t, err.Error(), "tempo")
}

func TestNormalize_RejectsWrongKind(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	tests := []struct {
		name string
		row  value.Object
	}{
		{"text in real column", value.Object{"duration": value.String("slow")}},
		{"fractional integer", value.Object{"position": value.Float(1.5)}},
		{"null in not-null column", value.Object{"duration": value.Null{}}},
		{"number in text column", value.Object{"notes": value.Int(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := beats.Normalize(tt.row)
			require.Error(t, err)
			assert.True(t, errs.IsInvalidOperation(err))
		})
	}
}

func TestInsertSQL_ColumnOrderFollowsTable(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	query, args := beats.InsertSQL(value.Object{
		"notes":    value.String("pickup"),
		"duration": value.Float(0.5),
		"position": value.Int(1),
	})

	assert.Equal(t, "INSERT INTO beats (position, duration, notes) VALUES (?, ?, ?)", query)
	assert.Equal(t, []any{int64(1), 0.5, "pickup"}, args)
}

func TestUpdateSQL(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	query, args, err := beats.UpdateSQL(7, value.Object{
		"id":         value.Int(7),
		"updated_at": value.String("t"),
		"notes":      value.Null{},
	})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE beats SET notes = ?, updated_at = ? WHERE id = ?", query)
	assert.Equal(t, []any{nil, "t", int64(7)}, args)
}

func TestUpdateSQL_EmptySet(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	_, _, err = beats.UpdateSQL(7, value.Object{"id": value.Int(7)})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidOperation(err))
}

func TestSelectAndListSQL(t *testing.T) {
	measures, err := Lookup(Measures)
	require.NoError(t, err)

	query, err := measures.SelectSQL("start_beat")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, start_beat, rehearsal_mark, notes, created_at, updated_at FROM measures WHERE start_beat = ? ORDER BY id",
		query)

	query, err = measures.ListSQL("")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, start_beat, rehearsal_mark, notes, created_at, updated_at FROM measures ORDER BY id",
		query)

	_, err = measures.SelectSQL("1=1 OR id")
	assert.True(t, errs.IsInvalidOperation(err))
	_, err = measures.ListSQL("random()")
	assert.True(t, errs.IsInvalidOperation(err))
}

func TestExistingSQL(t *testing.T) {
	beats, err := Lookup(Beats)
	require.NoError(t, err)

	query, err := beats.ExistingSQL("id", 3)
	require.NoError(t, err)
	assert.Equal(t, "SELECT DISTINCT id FROM beats WHERE id IN (?, ?, ?)", query)

	_, err = beats.ExistingSQL("id", 0)
	assert.Error(t, err)
}

func TestGet_ReadsNormalizedRow(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	beats, err := Lookup(Beats)
	require.NoError(t, err)

	query, args := beats.InsertSQL(value.Object{
		"position":   value.Int(1),
		"duration":   value.Float(2),
		"created_at": value.String("2024-01-01T00:00:00Z"),
		"updated_at": value.String("2024-01-01T00:00:00Z"),
	})
	_, err = st.DB().Exec(query, args...)
	require.NoError(t, err)

	row, ok, err := beats.Get(context.Background(), st.DB(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, value.Int(1), row["id"])
	assert.Equal(t, value.Float(2), row["duration"])
	assert.Equal(t, value.Bool(true), row["include_in_measure"])
	assert.Equal(t, value.Null{}, row["notes"])

	_, ok, err = beats.Get(context.Background(), st.DB(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}
