package improverr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersistenceError_Unwrap(t *testing.T) {
	inner := errors.New("database is locked")
	err := NewPersistenceError("backlog insert", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "backlog insert")
	assert.Contains(t, err.Error(), "database is locked")
}

func TestSourceError_Unwrap(t *testing.T) {
	err := &SourceError{SourceID: "stackoverflow", Err: ErrSourceTimeout}

	assert.ErrorIs(t, err, ErrSourceTimeout)
	assert.Contains(t, err.Error(), "stackoverflow")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"persistence error", NewPersistenceError("write", errors.New("locked")), true},
		{"wrapped persistence error", fmt.Errorf("outer: %w", NewPersistenceError("write", errors.New("locked"))), true},
		{"timeout", ErrTimeout, true},
		{"unavailable", ErrUnavailable, true},
		{"invalid session", ErrInvalidSession, false},
		{"not found", ErrNotFound, false},
		{"invalid transition", ErrInvalidTransition, false},
		{"all sources unavailable", ErrAllSourcesUnavailable, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
