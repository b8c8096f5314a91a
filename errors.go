package msgbox

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/msgbox/store"
)

// Sentinel errors for the msgbox package.
// Use errors.Is() to check for these errors.
//
// These errors wrap corresponding store-level errors where applicable,
// so errors.Is(err, msgbox.ErrNotFound) matches store.ErrNotFound too.
var (
	// ErrNotFound is returned when a message cannot be found or the viewer
	// has no state row for it.
	ErrNotFound = fmt.Errorf("msgbox: %w", store.ErrNotFound)

	// ErrInvalidMessage is returned for message validation failures.
	ErrInvalidMessage = errors.New("msgbox: invalid message")

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("msgbox: store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = fmt.Errorf("msgbox: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = fmt.Errorf("msgbox: %w", store.ErrAlreadyConnected)

	// ErrInvalidID is returned when an invalid message or user ID is provided.
	ErrInvalidID = fmt.Errorf("msgbox: %w", store.ErrInvalidID)

	// ErrDuplicateEntry is returned when a viewer already has a state row.
	ErrDuplicateEntry = fmt.Errorf("msgbox: %w", store.ErrDuplicateEntry)

	// ErrInvalidStatus is returned for an unknown state status.
	ErrInvalidStatus = fmt.Errorf("msgbox: %w", store.ErrInvalidStatus)

	// ErrInvalidUserID is returned when a mailbox is opened for an invalid user.
	ErrInvalidUserID = errors.New("msgbox: invalid user id")

	// ErrStateFanout is returned when a required state row could not be written.
	ErrStateFanout = errors.New("msgbox: state fan-out failed")

	// ErrNotificationFailed marks a notifier failure. It is never returned
	// from message creation.
	ErrNotificationFailed = errors.New("msgbox: notification failed")

	// ErrNotificationQueueFull is reported when an async notification finds
	// every slot busy and is dropped.
	ErrNotificationQueueFull = errors.New("msgbox: notification queue full")

	// ErrBodyTooLarge is returned when body exceeds maximum size.
	ErrBodyTooLarge = errors.New("msgbox: body too large")
)

// ValidationError reports one invalid field of a creation request.
// Multiple failures are combined with errors.Join.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalidMessage so errors.Is(err, ErrInvalidMessage) works.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidMessage
}

// StateFanoutError reports a state row that could not be persisted after the
// message was accepted.
type StateFanoutError struct {
	// MessageID is the persisted message. Empty when RolledBack is true.
	MessageID string
	// UserID is the viewer whose state row failed.
	UserID UserID
	// RolledBack reports whether the message was removed with the failure.
	// When false, the message exists with incomplete state rows.
	RolledBack bool
	Err        error
}

func (e *StateFanoutError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("msgbox: state fan-out for user %d failed, message rolled back: %v", e.UserID, e.Err)
	}
	return fmt.Sprintf("msgbox: state fan-out for user %d on message %s failed: %v", e.UserID, e.MessageID, e.Err)
}

// Unwrap exposes both ErrStateFanout and the underlying cause.
func (e *StateFanoutError) Unwrap() []error {
	return []error{ErrStateFanout, e.Err}
}

// NotificationError reports a failed notifier call. It is delivered to the
// failure handler and logged.
type NotificationError struct {
	MessageID string
	Kind      NotificationKind
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("msgbox: notify %s for message %s: %v", e.Kind, e.MessageID, e.Err)
}

func (e *NotificationError) Unwrap() []error {
	return []error{ErrNotificationFailed, e.Err}
}

// IsNotFoundError returns true if the error indicates a missing message.
func IsNotFoundError(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// IsValidationError returns true if err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateFanoutError returns true if err carries a *StateFanoutError.
func IsStateFanoutError(err error) bool {
	var fe *StateFanoutError
	return errors.As(err, &fe)
}

// IsRetryableError returns true for failures that may succeed on retry.
// Validation and lookup failures are permanent.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidMessage),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInvalidID),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrDuplicateEntry),
		errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrStoreRequired):
		return false
	}
	return true
}

// storeSentinels maps store errors to their package-level re-exports.
var storeSentinels = []struct {
	store, pkg error
}{
	{store.ErrNotFound, ErrNotFound},
	{store.ErrNotConnected, ErrNotConnected},
	{store.ErrInvalidID, ErrInvalidID},
	{store.ErrDuplicateEntry, ErrDuplicateEntry},
	{store.ErrInvalidStatus, ErrInvalidStatus},
}

// wrapStoreError annotates a store failure with op. Known store sentinels
// are replaced by their msgbox counterparts, which still match the store
// sentinel with errors.Is.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range storeSentinels {
		if err == s.store {
			return fmt.Errorf("%s: %w", op, s.pkg)
		}
		if errors.Is(err, s.store) {
			return fmt.Errorf("%s: %w: %w", op, s.pkg, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
