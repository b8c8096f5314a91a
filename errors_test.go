package msgbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rbaliyan/msgbox/store"
)

func TestWrapStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pkg  error
	}{
		{"not found", store.ErrNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("postgres: %w", store.ErrNotFound), ErrNotFound},
		{"duplicate", store.ErrDuplicateEntry, ErrDuplicateEntry},
		{"not connected", store.ErrNotConnected, ErrNotConnected},
		{"invalid id", store.ErrInvalidID, ErrInvalidID},
		{"invalid status", store.ErrInvalidStatus, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapStoreError("op", tt.err)
			if !errors.Is(err, tt.pkg) {
				t.Errorf("expected %v, got %v", tt.pkg, err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected store error to be preserved, got %v", err)
			}
		})
	}

	if wrapStoreError("op", nil) != nil {
		t.Error("expected nil")
	}
	other := errors.New("boom")
	if err := wrapStoreError("op", other); !errors.Is(err, other) {
		t.Errorf("expected cause, got %v", err)
	}
}

func TestStateFanoutError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&StateFanoutError{MessageID: "m1", UserID: 5, Err: cause})

	if !errors.Is(err, ErrStateFanout) || !errors.Is(err, cause) {
		t.Errorf("expected both sentinel and cause, got %v", err)
	}
	if !IsStateFanoutError(fmt.Errorf("create: %w", err)) {
		t.Error("expected IsStateFanoutError through wrapping")
	}
	if IsRetryableError(&ValidationError{Field: "body", Message: "x"}) {
		t.Error("validation errors are not retryable")
	}
	if !IsRetryableError(err) {
		t.Error("fan-out errors are retryable")
	}
	if IsRetryableError(nil) {
		t.Error("nil is not retryable")
	}
}
