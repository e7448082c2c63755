package beats

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/value"
)

// SentinelID is the reserved id of the sentinel beat.
const SentinelID int64 = 0

// Beat is one element of the sequence.
type Beat struct {
	ID               int64     `json:"id" yaml:"id"`
	Position         int64     `json:"position" yaml:"position"`
	Duration         float64   `json:"duration" yaml:"duration"`
	IncludeInMeasure bool      `json:"include_in_measure" yaml:"include_in_measure"`
	Notes            *string   `json:"notes" yaml:"notes"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

// IsSentinel reports whether b is the sentinel beat.
func (b Beat) IsSentinel() bool {
	return b.ID == SentinelID
}

// NewBeat is the input for CreateBeats. Position is assigned by the
// sequencer. A nil IncludeInMeasure uses the column default (true).
type NewBeat struct {
	Duration         float64
	IncludeInMeasure *bool
	Notes            *string
}

// BeatUpdate is the input for UpdateBeats. Nil fields are left untouched.
// Notes{Valid: false} clears the notes.
type BeatUpdate struct {
	ID               int64
	Position         *int64
	Duration         *float64
	IncludeInMeasure *bool
	Notes            *sql.NullString
}

func (n NewBeat) row(position int64) value.Object {
	row := value.Object{
		"position": value.Int(position),
		"duration": value.Float(n.Duration),
	}
	if n.IncludeInMeasure != nil {
		row["include_in_measure"] = value.Bool(*n.IncludeInMeasure)
	}
	if n.Notes != nil {
		row["notes"] = value.String(*n.Notes)
	}
	return row
}

func (u BeatUpdate) row() value.Object {
	row := value.Object{"id": value.Int(u.ID)}
	if u.Position != nil {
		row["position"] = value.Int(*u.Position)
	}
	if u.Duration != nil {
		row["duration"] = value.Float(*u.Duration)
	}
	if u.IncludeInMeasure != nil {
		row["include_in_measure"] = value.Bool(*u.IncludeInMeasure)
	}
	if u.Notes != nil {
		if u.Notes.Valid {
			row["notes"] = value.String(u.Notes.String)
		} else {
			row["notes"] = value.Null{}
		}
	}
	return row
}

// fromRow converts a stored row into a Beat.
func fromRow(row value.Object) (Beat, error) {
	var b Beat
	var ok bool
	if b.ID, ok = row.Int("id"); !ok {
		return Beat{}, fmt.Errorf("beat row without id")
	}
	b.Position, _ = row.Int("position")
	b.Duration, _ = row.Float("duration")
	b.IncludeInMeasure, _ = row.Bool("include_in_measure")
	if s, ok := row.String("notes"); ok {
		b.Notes = &s
	}

	var err error
	if s, ok := row.String("created_at"); ok {
		if b.CreatedAt, err = value.ParseTime(s); err != nil {
			return Beat{}, fmt.Errorf("beat %d: %w", b.ID, err)
		}
	}
	if s, ok := row.String("updated_at"); ok {
		if b.UpdatedAt, err = value.ParseTime(s); err != nil {
			return Beat{}, fmt.Errorf("beat %d: %w", b.ID, err)
		}
	}
	return b, nil
}

func fromRows(rows []value.Object) ([]Beat, error) {
	out := make([]Beat, 0, len(rows))
	for _, row := range rows {
		b, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
