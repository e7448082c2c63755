// Package errs defines the structured failures returned by the history
// engine, the CRUD executor and the beat sequencer.
//
// Callers branch on Code (or the IsXxx helpers, which see through
// wrapping). Codes NOT_FOUND and INVALID_OPERATION are always reported
// before the store is touched; TRANSACTION_FAILURE means a unit was rolled
// back or compensated; CORRUPT_HISTORY means a ledger record could not be
// interpreted and undo/redo has stopped.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes an Error.
type Code string

const (
	// CodeNotFound indicates one or more referenced ids do not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidOperation indicates a request that can never succeed,
	// e.g. touching the sentinel beat or shifting to a negative position.
	CodeInvalidOperation Code = "INVALID_OPERATION"

	// CodeConstraintViolation indicates a uniqueness, ordering or foreign
	// key invariant would be broken.
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"

	// CodeTransactionFailure indicates the store failed mid-unit.
	CodeTransactionFailure Code = "TRANSACTION_FAILURE"

	// CodeCorruptHistory indicates a ledger record is unreadable.
	CodeCorruptHistory Code = "CORRUPT_HISTORY"
)

// Error is a structured failure.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Table names the affected table, if any.
	Table string

	// IDs lists the offending row ids (e.g. every missing id for NOT_FOUND).
	IDs []int64

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Table != "" {
		fmt.Fprintf(&b, " (table=%s", e.Table)
		if len(e.IDs) > 0 {
			fmt.Fprintf(&b, ", ids=%v", e.IDs)
		}
		b.WriteString(")")
	} else if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " (ids=%v)", e.IDs)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports missing ids in table.
func NotFound(table string, ids []int64) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: "referenced rows do not exist",
		Table:   table,
		IDs:     ids,
	}
}

// InvalidOperation reports a request rejected before touching the store.
func InvalidOperation(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidOperation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ConstraintViolation wraps a store error that broke an invariant.
func ConstraintViolation(table string, err error) *Error {
	return &Error{
		Code:    CodeConstraintViolation,
		Message: "constraint violated",
		Table:   table,
		Err:     err,
	}
}

// TransactionFailure wraps a store error that aborted a unit.
func TransactionFailure(message string, err error) *Error {
	return &Error{
		Code:    CodeTransactionFailure,
		Message: message,
		Err:     err,
	}
}

// CorruptHistory reports an uninterpretable ledger record.
func CorruptHistory(format string, args ...any) *Error {
	return &Error{
		Code:    CodeCorruptHistory,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Has reports whether any *Error in err's chain carries code.
// A TRANSACTION_FAILURE wrapping a CONSTRAINT_VIOLATION has both.
func Has(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNotFound returns true if err carries CodeNotFound.
func IsNotFound(err error) bool { return Has(err, CodeNotFound) }

// IsInvalidOperation returns true if err carries CodeInvalidOperation.
func IsInvalidOperation(err error) bool { return Has(err, CodeInvalidOperation) }

// IsConstraintViolation returns true if err carries CodeConstraintViolation.
func IsConstraintViolation(err error) bool { return Has(err, CodeConstraintViolation) }

// IsTransactionFailure returns true if err carries CodeTransactionFailure.
func IsTransactionFailure(err error) bool { return Has(err, CodeTransactionFailure) }

// IsCorruptHistory returns true if err carries CodeCorruptHistory.
func IsCorruptHistory(err error) bool { return Has(err, CodeCorruptHistory) }
