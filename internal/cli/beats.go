package cli

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/beats"
)

// NewBeatsCommand creates the beats command group.
func NewBeatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beats",
		Short: "List and edit beats",
	}

	cmd.AddCommand(newBeatsListCommand(rootOpts))
	cmd.AddCommand(newBeatsCreateCommand(rootOpts))
	cmd.AddCommand(newBeatsUpdateCommand(rootOpts))
	cmd.AddCommand(newBeatsDeleteCommand(rootOpts))
	cmd.AddCommand(newBeatsShiftCommand(rootOpts))
	cmd.AddCommand(newBeatsFlattenCommand(rootOpts))

	return cmd
}

func newBeatsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List beats in position order (the sentinel is position 0)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				list, err := s.beats.ListBeats(ctx)
				return beatList(list), err
			})
		},
	}
}

// BeatsCreateOptions holds flags for beats create.
type BeatsCreateOptions struct {
	Durations []float64
	After     int64
	Notes     string
	Exclude   bool
	Merge     bool
}

func newBeatsCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BeatsCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create beats",
		Long: `Create one beat per --duration.

Beats are appended after the last position unless --after is given, in
which case they are inserted directly after that position and later beats
move up.

Example:
  cadence beats create --duration 1 --duration 0.5
  cadence beats create --duration 2 --after 3 --merge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				in := make([]beats.NewBeat, len(opts.Durations))
				for i, d := range opts.Durations {
					in[i] = beats.NewBeat{Duration: d}
					if opts.Exclude {
						in[i].IncludeInMeasure = new(bool)
					}
					if cmd.Flags().Changed("notes") {
						in[i].Notes = &opts.Notes
					}
				}

				var seqOpts []beats.Option
				if cmd.Flags().Changed("after") {
					seqOpts = append(seqOpts, beats.AfterPosition(opts.After))
				}
				if opts.Merge {
					seqOpts = append(seqOpts, beats.MergeWithPrevious())
				}

				created, err := s.beats.CreateBeats(ctx, in, seqOpts...)
				return beatList(created), err
			})
		},
	}

	cmd.Flags().Float64SliceVar(&opts.Durations, "duration", nil, "beat duration; repeat to create several beats (required)")
	_ = cmd.MarkFlagRequired("duration")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "insert after this position instead of appending")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes for every created beat")
	cmd.Flags().BoolVar(&opts.Exclude, "exclude", false, "exclude the beats from measure counting")
	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "add to the previous undo group")

	return cmd
}

// BeatsUpdateOptions holds flags for beats update.
type BeatsUpdateOptions struct {
	Position   int64
	Duration   float64
	Include    bool
	Notes      string
	ClearNotes bool
	Merge      bool
}

func newBeatsUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BeatsUpdateOptions{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update one beat",
		Long: `Update the fields of one beat. Only flags that are given change.

Example:
  cadence beats update 4 --duration 0.75 --notes "fermata"
  cadence beats update 4 --include=false --clear-notes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}

				u := beats.BeatUpdate{ID: id}
				flags := cmd.Flags()
				if flags.Changed("position") {
					u.Position = &opts.Position
				}
				if flags.Changed("duration") {
					u.Duration = &opts.Duration
				}
				if flags.Changed("include") {
					u.IncludeInMeasure = &opts.Include
				}
				switch {
				case opts.ClearNotes && flags.Changed("notes"):
					return nil, usageError("--notes and --clear-notes are mutually exclusive")
				case opts.ClearNotes:
					u.Notes = &sql.NullString{}
				case flags.Changed("notes"):
					u.Notes = &sql.NullString{String: opts.Notes, Valid: true}
				}
				if u.Position == nil && u.Duration == nil && u.IncludeInMeasure == nil && u.Notes == nil {
					return nil, usageError("nothing to update: pass at least one field flag")
				}

				var seqOpts []beats.Option
				if opts.Merge {
					seqOpts = append(seqOpts, beats.MergeWithPrevious())
				}
				updated, err := s.beats.UpdateBeats(ctx, []beats.BeatUpdate{u}, seqOpts...)
				return beatList(updated), err
			})
		},
	}

	cmd.Flags().Int64Var(&opts.Position, "position", 0, "new position (must be free)")
	cmd.Flags().Float64Var(&opts.Duration, "duration", 0, "new duration")
	cmd.Flags().BoolVar(&opts.Include, "include", true, "include the beat in measure counting")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "new notes")
	cmd.Flags().BoolVar(&opts.ClearNotes, "clear-notes", false, "remove the notes")
	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "add to the previous undo group")

	return cmd
}

func newBeatsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete beats and close the gaps they leave",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				ids, err := parseIDs(args)
				if err != nil {
					return nil, err
				}
				var seqOpts []beats.Option
				if merge {
					seqOpts = append(seqOpts, beats.MergeWithPrevious())
				}
				deleted, err := s.beats.DeleteBeats(ctx, ids, seqOpts...)
				return beatList(deleted), err
			})
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "add to the previous undo group")
	return cmd
}

func newBeatsShiftCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		start, amount int64
		merge         bool
	)

	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Move every beat at or after --start by --amount positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				var seqOpts []beats.Option
				if merge {
					seqOpts = append(seqOpts, beats.MergeWithPrevious())
				}
				moved, err := s.beats.ShiftBeats(ctx, start, amount, seqOpts...)
				return beatList(moved), err
			})
		},
	}

	cmd.Flags().Int64Var(&start, "start", 0, "first position to move (required)")
	cmd.Flags().Int64Var(&amount, "amount", 0, "positions to move by, negative moves down (required)")
	cmd.Flags().BoolVar(&merge, "merge", false, "add to the previous undo group")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newBeatsFlattenCommand(rootOpts *RootOptions) *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Renumber beats to consecutive positions 1..n",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				var seqOpts []beats.Option
				if merge {
					seqOpts = append(seqOpts, beats.MergeWithPrevious())
				}
				moved, err := s.beats.FlattenOrder(ctx, seqOpts...)
				return beatList(moved), err
			})
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "add to the previous undo group")
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, usageError("invalid id %q", arg)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
