package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: KindUnknown},
		{name: "invalid input", err: ErrInvalidInput{Field: "name", Reason: "required"}, want: KindInvalidInput},
		{name: "wrapped storage", err: fmt.Errorf("append: %w", &StorageError{Op: "insert", Err: context.DeadlineExceeded}), want: KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewStorageError(t *testing.T) {
	assert.Nil(t, NewStorageError("op", nil))

	cause := errors.New("connection reset")
	err := NewStorageError("insert record", cause)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insert record")

	// already classified errors pass through untouched
	classified := ErrInvalidInput{Field: "name", Reason: "required"}
	assert.Equal(t, error(classified), NewStorageError("insert", classified))
	assert.False(t, IsRetryable(classified))
}
