package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodePrecondition, "resolve requires every lock")
	wrapped := fmt.Errorf("resolve: %w", err)

	assert.True(t, stderrors.Is(wrapped, New(CodePrecondition, "")))
	assert.False(t, stderrors.Is(wrapped, New(CodeStore, "")))
	assert.True(t, HasCode(wrapped, CodePrecondition))
	assert.Equal(t, CodePrecondition, CodeOf(wrapped))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeStore, "put eu state", stderrors.New("disk full"))

	assert.Equal(t, "put eu state: disk full", err.Error())
	assert.ErrorContains(t, stderrors.Unwrap(err), "disk full")
}

func TestCodeOfUnknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain")))
	assert.False(t, HasCode(nil, CodeStore))
}

func TestStoreKeepsExistingDomainCode(t *testing.T) {
	notFound := New(CodeNotFound, "record not found")

	require.Same(t, notFound, Store("get meta", notFound))
	assert.True(t, HasCode(Store("get meta", stderrors.New("io")), CodeStore))
	assert.NoError(t, Store("noop", nil))
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidArgument, 2},
		{CodePrecondition, 3},
		{CodeContentParse, 4},
		{CodeContentSchema, 4},
		{CodeProvider, 4},
		{CodeStore, 5},
		{CodeUnknown, 1},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.code.ExitCode())
		})
	}
	assert.True(t, CodeContentSchema.Retryable())
	assert.False(t, CodePrecondition.Retryable())
}
