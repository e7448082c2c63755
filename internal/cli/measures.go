package cli

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/measures"
)

// NewMeasuresCommand creates the measures command group.
func NewMeasuresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measures",
		Short: "List and edit measures",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List measures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				list, err := s.measures.List(ctx)
				return measureList(list), err
			})
		},
	})
	cmd.AddCommand(newMeasuresCreateCommand(rootOpts))
	cmd.AddCommand(newMeasuresUpdateCommand(rootOpts))
	cmd.AddCommand(newMeasuresDeleteCommand(rootOpts))

	return cmd
}

func newMeasuresCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		startBeats []int64
		mark       string
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create measures starting at the given beats",
		Long: `Create one measure per --start-beat.

Example:
  cadence measures create --start-beat 1 --start-beat 5 --mark A`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				in := make([]measures.NewMeasure, len(startBeats))
				for i, b := range startBeats {
					in[i] = measures.NewMeasure{StartBeat: b}
					if cmd.Flags().Changed("mark") {
						in[i].RehearsalMark = &mark
					}
					if cmd.Flags().Changed("notes") {
						in[i].Notes = &notes
					}
				}
				created, err := s.measures.Create(ctx, in)
				return measureList(created), err
			})
		},
	}

	cmd.Flags().Int64SliceVar(&startBeats, "start-beat", nil, "id of the first beat; repeat for several measures (required)")
	_ = cmd.MarkFlagRequired("start-beat")
	cmd.Flags().StringVar(&mark, "mark", "", "rehearsal mark")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")

	return cmd
}

func newMeasuresUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		startBeat             int64
		mark, notes           string
		clearMark, clearNotes bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update one measure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}

				flags := cmd.Flags()
				u := measures.MeasureUpdate{ID: id}
				if flags.Changed("start-beat") {
					u.StartBeat = &startBeat
				}
				if u.RehearsalMark, err = textUpdate(flags.Changed("mark"), mark, clearMark, "mark"); err != nil {
					return nil, err
				}
				if u.Notes, err = textUpdate(flags.Changed("notes"), notes, clearNotes, "notes"); err != nil {
					return nil, err
				}
				if u.StartBeat == nil && u.RehearsalMark == nil && u.Notes == nil {
					return nil, usageError("nothing to update: pass at least one field flag")
				}

				updated, err := s.measures.Update(ctx, []measures.MeasureUpdate{u})
				return measureList(updated), err
			})
		},
	}

	cmd.Flags().Int64Var(&startBeat, "start-beat", 0, "new first beat id")
	cmd.Flags().StringVar(&mark, "mark", "", "new rehearsal mark")
	cmd.Flags().BoolVar(&clearMark, "clear-mark", false, "remove the rehearsal mark")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	cmd.Flags().BoolVar(&clearNotes, "clear-notes", false, "remove the notes")

	return cmd
}

func newMeasuresDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var byStartBeat bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete measures",
		Long: `Delete measures by id, or with --by-start-beat every measure starting at
one of the given beat ids.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				ids, err := parseIDs(args)
				if err != nil {
					return nil, err
				}
				var deleted []measures.Measure
				if byStartBeat {
					deleted, err = s.measures.DeleteStartingAt(ctx, ids)
				} else {
					deleted, err = s.measures.Delete(ctx, ids)
				}
				return measureList(deleted), err
			})
		},
	}

	cmd.Flags().BoolVar(&byStartBeat, "by-start-beat", false, "treat the arguments as beat ids")
	return cmd
}

// textUpdate builds the update for a nullable text column from a value
// flag and its --clear-* counterpart.
func textUpdate(set bool, v string, clear bool, name string) (*sql.NullString, error) {
	switch {
	case set && clear:
		return nil, usageError("--%s and --clear-%s are mutually exclusive", name, name)
	case clear:
		return &sql.NullString{}, nil
	case set:
		return &sql.NullString{String: v, Valid: true}, nil
	}
	return nil, nil
}
