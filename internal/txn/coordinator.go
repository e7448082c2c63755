package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/store"
)

// DefaultHistoryLimit is the number of groups each ledger retains.
const DefaultHistoryLimit = 500

// Coordinator runs atomic units and consumes history.
type Coordinator struct {
	store  *store.Store
	limit  int
	logger *slog.Logger
	ids    IDGenerator

	// mu serializes units; the store has one connection and one writer.
	mu sync.Mutex

	// halted is set when a ledger record was found corrupt. It stays set
	// until ClearHistory.
	halted error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHistoryLimit sets how many groups each ledger keeps.
// n <= 0 keeps every group.
func WithHistoryLimit(n int) Option {
	return func(c *Coordinator) {
		c.limit = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator sets the unit id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) {
		if g != nil {
			c.ids = g
		}
	}
}

// New creates a Coordinator over st.
func New(st *store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  st,
		limit:  DefaultHistoryLimit,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// HistoryLimit returns the retention window in groups.
func (c *Coordinator) HistoryLimit() int {
	return c.limit
}

// UnitOption configures one call to Run.
type UnitOption func(*unitConfig)

type unitConfig struct {
	merge bool
}

// MergeWithPrevious makes the unit extend the previous undo group instead
// of opening its own. The group counter is still incremented when the unit
// starts and is decremented again once the unit succeeds.
func MergeWithPrevious() UnitOption {
	return func(u *unitConfig) {
		u.merge = true
	}
}

// Run executes fn as one atomic unit labelled label.
//
// Order of operations, all in one SQL transaction:
//  1. reserve an undo group
//  2. fn(tx)
//  3. append the buffered records as one group, trim the undo ledger
//  4. clear the redo ledger
//  5. commit
//
// A unit that records nothing releases its group and leaves both ledgers
// untouched. Any error rolls everything back and is returned unchanged if
// it is already an *errs.Error.
func (c *Coordinator) Run(ctx context.Context, label string, fn func(*Tx) error, opts ...UnitOption) error {
	var cfg unitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sqlTx, err := c.store.BeginTx(ctx)
	if err != nil {
		return errs.TransactionFailure("begin unit", err)
	}
	ledger := history.NewLedger(sqlTx)

	group, err := ledger.ReserveGroup(ctx, history.Undo)
	if err != nil {
		return c.rollback(sqlTx, errs.TransactionFailure("reserve group", err))
	}

	tx := &Tx{
		sqlTx:  sqlTx,
		id:     c.ids.Generate(),
		label:  label,
		group:  group,
		logger: c.logger,
	}
	c.logger.Debug("unit begin",
		"unit_id", tx.id,
		"label", label,
		"group", group,
	)

	if err := fn(tx); err != nil {
		c.logger.Debug("unit rollback",
			"unit_id", tx.id,
			"label", label,
			"error", err,
		)
		return c.rollback(sqlTx, err)
	}

	written, err := c.finish(ctx, ledger, tx, cfg)
	if err != nil {
		return c.rollback(sqlTx, errs.TransactionFailure("write history", err))
	}

	if err := sqlTx.Commit(); err != nil {
		return errs.TransactionFailure("commit unit", err)
	}
	c.logger.Debug("unit commit",
		"unit_id", tx.id,
		"label", label,
		"group", written,
		"records", len(tx.records),
	)
	return nil
}

// finish writes the unit's records and returns the group they went to
// (zero when there were none).
func (c *Coordinator) finish(ctx context.Context, ledger *history.Ledger, tx *Tx, cfg unitConfig) (int64, error) {
	if len(tx.records) == 0 {
		return 0, ledger.ReleaseGroup(ctx, history.Undo)
	}

	group := tx.group
	if cfg.merge && group > 1 {
		if err := ledger.ReleaseGroup(ctx, history.Undo); err != nil {
			return 0, err
		}
		group--
	}

	if err := ledger.Append(ctx, history.Undo, group, tx.label, tx.records); err != nil {
		return 0, err
	}
	if _, err := ledger.Trim(ctx, history.Undo, c.limit); err != nil {
		return 0, err
	}
	if err := ledger.Clear(ctx, history.Redo); err != nil {
		return 0, err
	}
	return group, nil
}

// rollback aborts sqlTx and returns cause.
func (c *Coordinator) rollback(sqlTx *sql.Tx, cause error) error {
	if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		c.logger.Error("rollback failed", "error", err, "cause", cause)
		return errs.TransactionFailure("rollback", errors.Join(cause, err))
	}
	return cause
}

// Halted returns the error that stopped undo/redo, or nil.
func (c *Coordinator) Halted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// ClearHistory empties both ledgers and lifts a corrupt-history halt.
func (c *Coordinator) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sqlTx, err := c.store.BeginTx(ctx)
	if err != nil {
		return errs.TransactionFailure("begin clear", err)
	}
	ledger := history.NewLedger(sqlTx)
	for _, kind := range []history.Kind{history.Undo, history.Redo} {
		if err := ledger.Clear(ctx, kind); err != nil {
			return c.rollback(sqlTx, errs.TransactionFailure("clear history", err))
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return errs.TransactionFailure("commit clear", err)
	}

	c.halted = nil
	c.logger.Info("history cleared")
	return nil
}

// Stats summarizes both ledgers.
type Stats struct {
	UndoGroups int    `json:"undo_groups"`
	RedoGroups int    `json:"redo_groups"`
	CanUndo    bool   `json:"can_undo"`
	CanRedo    bool   `json:"can_redo"`
	UndoLabel  string `json:"undo_label,omitempty"`
	RedoLabel  string `json:"redo_label,omitempty"`
	Limit      int    `json:"limit"`
	Halted     bool   `json:"halted"`
}

// HistoryStats reports group counts and the labels of the groups the next
// Undo and Redo would consume.
func (c *Coordinator) HistoryStats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ledger := history.NewLedger(c.store.DB())
	stats := Stats{Limit: c.limit, Halted: c.halted != nil}

	var err error
	if stats.UndoGroups, err = ledger.CountGroups(ctx, history.Undo); err != nil {
		return Stats{}, err
	}
	if stats.RedoGroups, err = ledger.CountGroups(ctx, history.Redo); err != nil {
		return Stats{}, err
	}
	stats.CanUndo = stats.UndoGroups > 0 && !stats.Halted
	stats.CanRedo = stats.RedoGroups > 0 && !stats.Halted

	if stats.UndoLabel, err = ledger.LatestLabel(ctx, history.Undo); err != nil {
		return Stats{}, err
	}
	if stats.RedoLabel, err = ledger.LatestLabel(ctx, history.Redo); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// History lists up to limit groups of a ledger, newest first.
func (c *Coordinator) History(ctx context.Context, kind history.Kind, limit int) ([]history.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups, err := history.NewLedger(c.store.DB()).List(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s history: %w", kind, err)
	}
	return groups, nil
}
