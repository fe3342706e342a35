package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := New(KindNotFound, "account not found with id: 42")
	assert.Equal(t, "not_found: account not found with id: 42", err.Error())
}

func TestError_WrappedCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindPersistence, "failed to persist account", cause)

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	err := Newf(KindDuplicateAccount, "user: %s already exists", "a@x.com")
	assert.Equal(t, KindDuplicateAccount, KindOf(err))

	// Kind survives further wrapping by callers.
	wrapped := fmt.Errorf("register: %w", err)
	assert.Equal(t, KindDuplicateAccount, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsKind(t *testing.T) {
	err := New(KindInvalidFilterCombination, "exactly one filter required")
	assert.True(t, IsKind(err, KindInvalidFilterCombination))
	assert.False(t, IsKind(err, KindValidation))
}
