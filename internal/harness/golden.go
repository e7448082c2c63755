package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/store"
)

// Snapshot captures the state after a scenario: the completion of every
// flow step, both entity tables and both ledgers. Timestamps are left out;
// they are deterministic but add nothing a reviewer needs.
type Snapshot struct {
	Scenario string            `json:"scenario"`
	Steps    []StepSnapshot    `json:"steps"`
	Beats    []BeatSnapshot    `json:"beats"`
	Measures []MeasureSnapshot `json:"measures"`
	Undo     []GroupSnapshot   `json:"undo"`
	Redo     []GroupSnapshot   `json:"redo"`
}

// StepSnapshot is one flow step's completion.
type StepSnapshot struct {
	Op   string  `json:"op"`
	Case string  `json:"case"`
	Code string  `json:"code,omitempty"`
	IDs  []int64 `json:"ids"`
}

// BeatSnapshot is one beats row.
type BeatSnapshot struct {
	ID               int64   `json:"id"`
	Position         int64   `json:"position"`
	Duration         float64 `json:"duration"`
	IncludeInMeasure bool    `json:"include_in_measure"`
	Notes            *string `json:"notes"`
}

// MeasureSnapshot is one measures row.
type MeasureSnapshot struct {
	ID            int64   `json:"id"`
	StartBeat     int64   `json:"start_beat"`
	RehearsalMark *string `json:"rehearsal_mark"`
}

// GroupSnapshot is one ledger group, newest first. Each record is rendered
// as "<action> <table> <id>", the action consuming it would apply.
type GroupSnapshot struct {
	Group   int64    `json:"group"`
	Label   string   `json:"label"`
	Records []string `json:"records"`
}

// snapshot reads the current state of the harness database.
func (h *Harness) snapshot(ctx context.Context, name string) (*Snapshot, error) {
	beatRows, err := h.beats.ListBeats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list beats: %w", err)
	}
	measureRows, err := h.measures.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list measures: %w", err)
	}

	s := &Snapshot{
		Scenario: name,
		Steps:    []StepSnapshot{},
		Beats:    make([]BeatSnapshot, len(beatRows)),
		Measures: make([]MeasureSnapshot, len(measureRows)),
	}
	for i, b := range beatRows {
		s.Beats[i] = BeatSnapshot{
			ID:               b.ID,
			Position:         b.Position,
			Duration:         b.Duration,
			IncludeInMeasure: b.IncludeInMeasure,
			Notes:            b.Notes,
		}
	}
	for i, m := range measureRows {
		s.Measures[i] = MeasureSnapshot{ID: m.ID, StartBeat: m.StartBeat, RehearsalMark: m.RehearsalMark}
	}

	if s.Undo, err = groupSnapshots(ctx, h.store, history.Undo); err != nil {
		return nil, err
	}
	if s.Redo, err = groupSnapshots(ctx, h.store, history.Redo); err != nil {
		return nil, err
	}
	return s, nil
}

func groupSnapshots(ctx context.Context, st *store.Store, kind history.Kind) ([]GroupSnapshot, error) {
	groups, err := history.NewLedger(st.DB()).List(ctx, kind, 0)
	if err != nil {
		return nil, fmt.Errorf("list %s ledger: %w", kind, err)
	}
	out := make([]GroupSnapshot, len(groups))
	for i, g := range groups {
		out[i] = GroupSnapshot{Group: g.ID, Label: g.Label, Records: make([]string, len(g.Records))}
		for j, r := range g.Records {
			id, _ := r.Action.RowID()
			out[i].Records[j] = fmt.Sprintf("%s %s %d", r.Action.Kind, r.Action.Table, id)
		}
	}
	return out, nil
}

// stepSnapshots extracts flow step completions from a trace.
func stepSnapshots(trace []TraceEvent) []StepSnapshot {
	steps := []StepSnapshot{}
	for _, event := range trace {
		if event.Type != EventCompletion {
			continue
		}
		steps = append(steps, StepSnapshot{Op: event.Op, Case: event.Case, Code: event.Code, IDs: event.IDs})
	}
	return steps
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A snapshot mismatch fails t
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	if result.Snapshot == nil {
		return fmt.Errorf("result for %s has no snapshot", name)
	}
	data, err := result.Snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
