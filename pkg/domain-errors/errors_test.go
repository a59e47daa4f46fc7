package dErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidInput, "correlation id cannot be empty")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
	assert.Contains(t, err.Error(), "correlation id cannot be empty")
}

func TestWrap(t *testing.T) {
	t.Run("preserves cause for errors.Is", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "audit sink unreachable")
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, CodeUnavailable, CodeOf(err))
	})

	t.Run("nil cause yields nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("innermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "user missing")
		outer := fmt.Errorf("lookup: %w", inner)
		assert.Equal(t, CodeNotFound, CodeOf(outer))
	})
}

func TestCodeOf_Unclassified(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestHasCode(t *testing.T) {
	err := New(CodeInvariantViolation, "status transition not allowed")
	assert.True(t, HasCode(err, CodeInvariantViolation))
	assert.False(t, HasCode(err, CodeInvalidInput))
}
