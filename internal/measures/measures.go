// Package measures manages measures: rows anchored on the beat that starts
// them. Measures have no ordering of their own and go straight through the
// generic executor, so every call is one undo group.
package measures

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/crud"
	"github.com/roach88/cadence/internal/schema"
	"github.com/roach88/cadence/internal/txn"
	"github.com/roach88/cadence/internal/value"
)

const table = schema.Measures

// Measure starts at StartBeat. A beat starts at most one measure, and a
// beat that starts a measure cannot be deleted.
type Measure struct {
	ID            int64     `json:"id" yaml:"id"`
	StartBeat     int64     `json:"start_beat" yaml:"start_beat"`
	RehearsalMark *string   `json:"rehearsal_mark" yaml:"rehearsal_mark"`
	Notes         *string   `json:"notes" yaml:"notes"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewMeasure is the input for Create.
type NewMeasure struct {
	StartBeat     int64
	RehearsalMark *string
	Notes         *string
}

// MeasureUpdate is the input for Update. Nil fields are left untouched;
// Valid: false clears a text field.
type MeasureUpdate struct {
	ID            int64
	StartBeat     *int64
	RehearsalMark *sql.NullString
	Notes         *sql.NullString
}

// Service runs measure operations.
type Service struct {
	coord *txn.Coordinator
	exec  *crud.Executor
}

// New creates a Service.
func New(coord *txn.Coordinator, exec *crud.Executor) *Service {
	return &Service{coord: coord, exec: exec}
}

// Create inserts measures.
func (s *Service) Create(ctx context.Context, in []NewMeasure) ([]Measure, error) {
	rows := make([]value.Object, len(in))
	for i, m := range in {
		row := value.Object{"start_beat": value.Int(m.StartBeat)}
		if m.RehearsalMark != nil {
			row["rehearsal_mark"] = value.String(*m.RehearsalMark)
		}
		if m.Notes != nil {
			row["notes"] = value.String(*m.Notes)
		}
		rows[i] = row
	}

	var out []value.Object
	err := s.coord.Run(ctx, "create measures", func(tx *txn.Tx) error {
		var err error
		out, err = s.exec.CreateItems(ctx, tx, table, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromRows(out)
}

// Update writes the supplied fields of each measure.
func (s *Service) Update(ctx context.Context, in []MeasureUpdate) ([]Measure, error) {
	rows := make([]value.Object, len(in))
	for i, u := range in {
		row := value.Object{"id": value.Int(u.ID)}
		if u.StartBeat != nil {
			row["start_beat"] = value.Int(*u.StartBeat)
		}
		setText(row, "rehearsal_mark", u.RehearsalMark)
		setText(row, "notes", u.Notes)
		rows[i] = row
	}

	var out []value.Object
	err := s.coord.Run(ctx, "update measures", func(tx *txn.Tx) error {
		var err error
		out, err = s.exec.UpdateItems(ctx, tx, table, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromRows(out)
}

// Delete removes measures by id and returns them as they were.
func (s *Service) Delete(ctx context.Context, ids []int64) ([]Measure, error) {
	return s.delete(ctx, "delete measures", ids)
}

// DeleteStartingAt removes the measures that start on the given beats.
func (s *Service) DeleteStartingAt(ctx context.Context, beatIDs []int64) ([]Measure, error) {
	return s.delete(ctx, "delete measures", beatIDs, crud.ByColumn("start_beat"))
}

func (s *Service) delete(ctx context.Context, label string, ids []int64, opts ...crud.DeleteOption) ([]Measure, error) {
	var out []value.Object
	err := s.coord.Run(ctx, label, func(tx *txn.Tx) error {
		var err error
		out, err = s.exec.DeleteItems(ctx, tx, table, ids, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromRows(out)
}

// List returns every measure ordered by id.
func (s *Service) List(ctx context.Context) ([]Measure, error) {
	rows, err := s.exec.ListItems(ctx, s.coord.Store().DB(), table, "")
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func setText(row value.Object, key string, v *sql.NullString) {
	if v == nil {
		return
	}
	if v.Valid {
		row[key] = value.String(v.String)
	} else {
		row[key] = value.Null{}
	}
}

func fromRows(rows []value.Object) ([]Measure, error) {
	out := make([]Measure, 0, len(rows))
	for _, row := range rows {
		var m Measure
		var ok bool
		if m.ID, ok = row.Int("id"); !ok {
			return nil, fmt.Errorf("measure row without id")
		}
		m.StartBeat, _ = row.Int("start_beat")
		if s, ok := row.String("rehearsal_mark"); ok {
			m.RehearsalMark = &s
		}
		if s, ok := row.String("notes"); ok {
			m.Notes = &s
		}
		var err error
		if s, ok := row.String("created_at"); ok {
			if m.CreatedAt, err = value.ParseTime(s); err != nil {
				return nil, fmt.Errorf("measure %d: %w", m.ID, err)
			}
		}
		if s, ok := row.String("updated_at"); ok {
			if m.UpdatedAt, err = value.ParseTime(s); err != nil {
				return nil, fmt.Errorf("measure %d: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}
