package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/cadence/internal/beats"
	"github.com/roach88/cadence/internal/crud"
	"github.com/roach88/cadence/internal/errs"
	"github.com/roach88/cadence/internal/measures"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
	"github.com/roach88/cadence/internal/txn"
)

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and unit ids.
type Harness struct {
	store    *store.Store
	coord    *txn.Coordinator
	beats    *beats.Sequencer
	measures *measures.Service
	logger   *slog.Logger
	seq      int64
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	historyLimit int
	logger       *slog.Logger
}

// WithHistoryLimit sets the coordinator's history limit. Default:
// txn.DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(c *runConfig) {
		c.historyLimit = n
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database:
// 1. Open the database and build the engine stack
// 2. Execute setup steps (any failure aborts the run)
// 3. Execute flow steps, checking expect clauses
// 4. Evaluate assertions
// 5. Snapshot tables and ledgers
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		historyLimit: txn.DefaultHistoryLimit,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	coord := txn.New(st,
		txn.WithHistoryLimit(cfg.historyLimit),
		txn.WithLogger(cfg.logger),
		txn.WithIDGenerator(testutil.NewSequentialIDs("unit")),
	)
	exec := crud.New(clock.Now)

	h := &Harness{
		store:    st,
		coord:    coord,
		beats:    beats.New(coord, exec),
		measures: measures.New(coord, exec),
		logger:   cfg.logger,
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	snapshot, err := h.snapshot(ctx, scenario.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot: %w", err)
	}
	snapshot.Steps = stepSnapshots(result.Trace)
	result.Snapshot = snapshot

	return result, nil
}

// executeSetup runs all setup steps. Setup steps are not traced.
func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		if _, err := operations[step.Op](ctx, h, &step.Args); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
		h.logger.Debug("setup step completed", "step", i, "op", step.Op)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Records the invocation in the trace
// 2. Runs the operation against the engine
// 3. Records the completion (case, error code, returned ids)
// 4. Compares the completion with the expect clause
//
// A mismatch is recorded in result and the flow continues.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		args, err := argsMap(&step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		h.seq++
		result.AddInvocationTrace(step.Op, args, h.seq)

		ids, opErr := operations[step.Op](ctx, h, &step.Args)

		outputCase, code := CaseSuccess, ""
		if opErr != nil {
			outputCase = CaseError
			code = string(errs.CodeOf(opErr))
			if code == "" {
				code = "UNCLASSIFIED"
			}
		}
		if ids == nil {
			ids = []int64{}
		}

		h.seq++
		result.AddCompletionTrace(step.Op, outputCase, code, ids, h.seq)

		if msg := checkExpect(i, step, ids, opErr); msg != "" {
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"case", outputCase,
			"code", code,
		)
	}
	return nil
}

// checkExpect compares one step's completion with its expect clause and
// returns a failure message, or "" if it matched.
func checkExpect(index int, step Step, ids []int64, opErr error) string {
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{Case: CaseSuccess}
	}

	switch expect.Case {
	case CaseSuccess:
		if opErr != nil {
			return fmt.Sprintf("flow[%d] %s: expected success, got error: %v", index, step.Op, opErr)
		}
	case CaseError:
		if opErr == nil {
			return fmt.Sprintf("flow[%d] %s: expected error %s, got success", index, step.Op, expect.Code)
		}
		if expect.Code != "" && !errs.Has(opErr, errs.Code(expect.Code)) {
			return fmt.Sprintf("flow[%d] %s: expected error %s, got: %v", index, step.Op, expect.Code, opErr)
		}
		return ""
	}

	if expect.IDs != nil && !slices.Equal(expect.IDs, ids) {
		return fmt.Sprintf("flow[%d] %s: expected ids %v, got %v", index, step.Op, expect.IDs, ids)
	}
	return ""
}
