package harness

import (
	"context"
	"database/sql"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/beats"
	"github.com/roach88/cadence/internal/measures"
	"github.com/roach88/cadence/internal/txn"
)

// operation runs one step and returns the ids it reports.
type operation func(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error)

var operations = map[string]operation{
	"create_beats":    opCreateBeats,
	"shift_beats":     opShiftBeats,
	"flatten_order":   opFlattenOrder,
	"update_beats":    opUpdateBeats,
	"delete_beats":    opDeleteBeats,
	"create_measures": opCreateMeasures,
	"delete_measures": opDeleteMeasures,
	"undo":            opUndo,
	"redo":            opRedo,
	"clear_history":   opClearHistory,
}

// decodeArgs decodes a step's args into out. Absent args leave out zero.
func decodeArgs(args *yaml.Node, out any) error {
	if args == nil || args.Kind == 0 {
		return nil
	}
	if err := args.Decode(out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// argsMap returns a step's args as a plain map for the trace.
func argsMap(args *yaml.Node) (map[string]any, error) {
	m := map[string]any{}
	if err := decodeArgs(args, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type mergeArg struct {
	Merge bool `yaml:"merge"`
}

func (m mergeArg) options() []beats.Option {
	if m.Merge {
		return []beats.Option{beats.MergeWithPrevious()}
	}
	return nil
}

func opCreateBeats(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a struct {
		mergeArg         `yaml:",inline"`
		Durations        []float64 `yaml:"durations"`
		After            *int64    `yaml:"after"`
		IncludeInMeasure *bool     `yaml:"include_in_measure"`
		Notes            *string   `yaml:"notes"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	in := make([]beats.NewBeat, len(a.Durations))
	for i, d := range a.Durations {
		in[i] = beats.NewBeat{Duration: d, IncludeInMeasure: a.IncludeInMeasure, Notes: a.Notes}
	}
	opts := a.options()
	if a.After != nil {
		opts = append(opts, beats.AfterPosition(*a.After))
	}
	return beatIDs(h.beats.CreateBeats(ctx, in, opts...))
}

func opShiftBeats(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a struct {
		mergeArg `yaml:",inline"`
		Start    int64 `yaml:"start"`
		Amount   int64 `yaml:"amount"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return beatIDs(h.beats.ShiftBeats(ctx, a.Start, a.Amount, a.options()...))
}

func opFlattenOrder(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a mergeArg
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return beatIDs(h.beats.FlattenOrder(ctx, a.options()...))
}

func opUpdateBeats(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a struct {
		mergeArg `yaml:",inline"`
		Updates  []struct {
			ID               int64    `yaml:"id"`
			Position         *int64   `yaml:"position"`
			Duration         *float64 `yaml:"duration"`
			IncludeInMeasure *bool    `yaml:"include_in_measure"`
			Notes            *string  `yaml:"notes"`
			ClearNotes       bool     `yaml:"clear_notes"`
		} `yaml:"updates"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	updates := make([]beats.BeatUpdate, len(a.Updates))
	for i, u := range a.Updates {
		updates[i] = beats.BeatUpdate{
			ID:               u.ID,
			Position:         u.Position,
			Duration:         u.Duration,
			IncludeInMeasure: u.IncludeInMeasure,
		}
		switch {
		case u.ClearNotes:
			updates[i].Notes = &sql.NullString{}
		case u.Notes != nil:
			updates[i].Notes = &sql.NullString{String: *u.Notes, Valid: true}
		}
	}
	return beatIDs(h.beats.UpdateBeats(ctx, updates, a.options()...))
}

func opDeleteBeats(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a struct {
		mergeArg `yaml:",inline"`
		IDs      []int64 `yaml:"ids"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return beatIDs(h.beats.DeleteBeats(ctx, a.IDs, a.options()...))
}

func opCreateMeasures(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a struct {
		StartBeats    []int64 `yaml:"start_beats"`
		RehearsalMark *string `yaml:"rehearsal_mark"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	in := make([]measures.NewMeasure, len(a.StartBeats))
	for i, b := range a.StartBeats {
		in[i] = measures.NewMeasure{StartBeat: b, RehearsalMark: a.RehearsalMark}
	}
	return measureIDs(h.measures.Create(ctx, in))
}

func opDeleteMeasures(ctx context.Context, h *Harness, args *yaml.Node) ([]int64, error) {
	var a struct {
		IDs []int64 `yaml:"ids"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return measureIDs(h.measures.Delete(ctx, a.IDs))
}

func opUndo(ctx context.Context, h *Harness, _ *yaml.Node) ([]int64, error) {
	return outcomeIDs(h.coord.Undo(ctx))
}

func opRedo(ctx context.Context, h *Harness, _ *yaml.Node) ([]int64, error) {
	return outcomeIDs(h.coord.Redo(ctx))
}

func opClearHistory(ctx context.Context, h *Harness, _ *yaml.Node) ([]int64, error) {
	return []int64{}, h.coord.ClearHistory(ctx)
}

func beatIDs(list []beats.Beat, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(list))
	for i, b := range list {
		ids[i] = b.ID
	}
	return ids, nil
}

func measureIDs(list []measures.Measure, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(list))
	for i, m := range list {
		ids[i] = m.ID
	}
	return ids, nil
}

func outcomeIDs(out txn.Outcome, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	return out.AffectedIDs, nil
}
