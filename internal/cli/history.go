package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/history"
)

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the latest group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				out, err := s.coord.Undo(ctx)
				return outcomeResult(out), err
			})
		},
	}
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the latest undone group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				out, err := s.coord.Redo(ctx)
				return outcomeResult(out), err
			})
		},
	}
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear undo/redo history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show undo/redo availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				stats, err := s.coord.HistoryStats(ctx)
				return statsResult(stats), err
			})
		},
	})

	var (
		redo  bool
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List history groups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return rootOpts.formatter(cmd).Fail(usageError("--limit must be >= 0"))
			}
			kind := history.Undo
			if redo {
				kind = history.Redo
			}
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				groups, err := s.coord.History(ctx, kind, limit)
				return newGroupList(groups), err
			})
		},
	}
	list.Flags().BoolVar(&redo, "redo", false, "list the redo ledger instead of the undo ledger")
	list.Flags().IntVar(&limit, "limit", 10, "maximum groups to list, 0 lists all")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all undo and redo history",
		Long: `Delete all undo and redo history. This also resumes undo/redo after a
corrupt record halted them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) (any, error) {
				if err := s.coord.ClearHistory(ctx); err != nil {
					return nil, err
				}
				return statusMessage{Message: "History cleared."}, nil
			})
		},
	})

	return cmd
}
