package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/beats"
	"github.com/roach88/cadence/internal/config"
	"github.com/roach88/cadence/internal/crud"
	"github.com/roach88/cadence/internal/measures"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/txn"
)

// session is the engine stack opened for one command.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	coord    *txn.Coordinator
	beats    *beats.Sequencer
	measures *measures.Service
}

// formatter builds the OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// resolveConfig loads the config file and applies flag overrides.
// An explicitly named config file must exist.
func (o *RootOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath
	} else if _, err := os.Stat(path); err != nil {
		return config.Config{}, fmt.Errorf("config file: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = o.Database
	}
	if flags.Changed("history-limit") {
		cfg.History.Limit = o.HistoryLimit
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run opens a session, calls fn and writes its result. The store is
// closed before run returns.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) (any, error)) error {
	out := o.formatter(cmd)

	cfg, err := o.resolveConfig(cmd)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to load config", err))
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	coord := txn.New(st,
		txn.WithHistoryLimit(cfg.History.Limit),
		txn.WithLogger(logger),
	)
	exec := crud.New(nil)
	s := &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		coord:    coord,
		beats:    beats.New(coord, exec),
		measures: measures.New(coord, exec),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := fn(ctx, s)
	if err != nil {
		return out.Fail(err)
	}
	return out.Success(data)
}

// usageError marks a bad argument detected by a command before it touches
// the store.
func usageError(format string, args ...any) error {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...))
}
