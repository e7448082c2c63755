package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/cadence/internal/errs"
)

// Classify maps a driver error to the error taxonomy.
//
//   - trigger RAISE(ABORT) (sentinel guard)  → INVALID_OPERATION
//   - any other SQLITE_CONSTRAINT            → CONSTRAINT_VIOLATION
//   - everything else                        → TRANSACTION_FAILURE
//
// Errors that are already *errs.Error pass through unchanged.
func Classify(table string, err error) error {
	if err == nil {
		return nil
	}

	var structured *errs.Error
	if errors.As(err, &structured) {
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintTrigger {
			return &errs.Error{
				Code:    errs.CodeInvalidOperation,
				Message: sqliteErr.Error(),
				Table:   table,
				Err:     err,
			}
		}
		return errs.ConstraintViolation(table, err)
	}

	failure := errs.TransactionFailure("store error", err)
	failure.Table = table
	return failure
}
