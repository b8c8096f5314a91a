package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a message or state row cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrDuplicateEntry is returned when a (message, user) state row already exists.
	ErrDuplicateEntry = errors.New("store: duplicate entry")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrInvalidStatus is returned for a status outside active, archived, trashed.
	ErrInvalidStatus = errors.New("store: invalid status")

	// ErrInvalidType is returned for a message type outside inbox, invitation, alert.
	ErrInvalidType = errors.New("store: invalid message type")

	// ErrTransactionFailed is returned when a database transaction fails.
	// No changes were made.
	ErrTransactionFailed = errors.New("store: transaction failed")
)

// StateError reports a state row that could not be written during creation.
// MessageID is empty when the message itself was rolled back.
type StateError struct {
	MessageID string
	UserID    UserID
	Err       error
}

func (e *StateError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("store: create state for user %d: %v", e.UserID, e.Err)
	}
	return fmt.Sprintf("store: create state for message %s user %d: %v", e.MessageID, e.UserID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsStateError reports whether err carries a *StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
