package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NotFound("beats", []int64{4, 9})
	assert.Equal(t, "NOT_FOUND: referenced rows do not exist (table=beats, ids=[4 9])", err.Error())

	err = InvalidOperation("cannot shift from position %d", 0)
	assert.Equal(t, "INVALID_OPERATION: cannot shift from position 0", err.Error())
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	base := NotFound("beats", []int64{1})
	wrapped := fmt.Errorf("update beats: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsInvalidOperation(wrapped))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestHas_NestedCodes(t *testing.T) {
	inner := ConstraintViolation("beats", errors.New("UNIQUE constraint failed: beats.position"))
	outer := TransactionFailure("create beats", inner)

	assert.True(t, IsTransactionFailure(outer))
	assert.True(t, IsConstraintViolation(outer))
	assert.Equal(t, CodeTransactionFailure, CodeOf(outer))
	assert.ErrorContains(t, outer, "UNIQUE constraint failed")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, IsCorruptHistory(nil))
}
