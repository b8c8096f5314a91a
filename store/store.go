// Package store provides interfaces and types for msgbox storage.
// Implementations are in store/memory, store/postgres, and store/mongo.
// store/cached decorates any Store with redis-backed counters.
//
// # Data Layout
//
// Two collections back every implementation:
//
//   - messages: one row per message. The read flag and conversation group live here.
//   - message_states: one row per (message, viewer). Status lives here.
//
// Every read is scoped to a viewer by joining messages to message_states on
// user_id. A message with no state row for a viewer is invisible to that viewer.
//
// # Atomicity
//
// CreateMessage writes the message and all of its state rows in one
// transaction (PostgreSQL transaction, MongoDB session, memory write lock).
// InsertMessage plus CreateState expose the same writes as separate steps for
// callers that opt out of atomic creation.
//
// All operations must be safe for concurrent use. Uniqueness of
// (message_id, user_id) is enforced by the backend, never by external locks.
package store

import "context"

// Store is the storage interface for msgbox.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	MessageStore
	StateStore
	CountStore
}

// MessageStore composes the message read, write and mutation interfaces.
type MessageStore interface {
	MessageReader
	MessageWriter
	MessageMutator
}

// MessageReader provides viewer-scoped message queries.
type MessageReader interface {
	// Get returns a message by ID regardless of viewer.
	Get(ctx context.Context, id string) (*Message, error)

	// Find returns messages visible to q.Viewer matching q, newest first.
	Find(ctx context.Context, q Query, opts ListOptions) ([]*Message, error)

	// Count returns the number of messages Find would return without pagination.
	// Implementations must use a single aggregate query.
	Count(ctx context.Context, q Query) (int64, error)

	// Conversations returns the latest active inbox message per conversation
	// group visible to viewer, ordered by group ascending then created_at
	// descending. Pagination applies to the representatives.
	Conversations(ctx context.Context, viewer UserID, opts ListOptions) ([]*Message, error)

	// CountConversations returns the number of distinct conversation groups
	// Conversations would return without pagination.
	CountConversations(ctx context.Context, viewer UserID) (int64, error)
}

// MessageWriter creates messages.
type MessageWriter interface {
	// CreateMessage persists the message and one active state row per viewer,
	// in order, as a single unit. If any state row fails the message is not
	// persisted and a *StateError is returned.
	CreateMessage(ctx context.Context, data MessageData, viewers []UserID) (*Message, []*MessageState, error)

	// InsertMessage persists only the message row. State rows must be added
	// with CreateState.
	InsertMessage(ctx context.Context, data MessageData) (*Message, error)
}

// MessageMutator changes messages after creation.
type MessageMutator interface {
	// MarkRead sets the read flag on the message.
	MarkRead(ctx context.Context, id string, read bool) error

	// Delete removes the message and all of its state rows.
	Delete(ctx context.Context, id string) error
}

// StateStore owns the per-(message, user) visibility rows.
type StateStore interface {
	// CreateState inserts an active state row for user.
	// Returns ErrDuplicateEntry if the pair already has a row and
	// ErrNotFound if the message does not exist.
	CreateState(ctx context.Context, messageID string, user UserID) (*MessageState, error)

	// States returns all state rows for a message ordered by creation.
	States(ctx context.Context, messageID string) ([]*MessageState, error)

	// State returns the state row of user for a message.
	State(ctx context.Context, messageID string, user UserID) (*MessageState, error)

	// SetStatus changes the status of the user's state row.
	SetStatus(ctx context.Context, messageID string, user UserID, status Status) error
}

// CountStore provides aggregate mailbox counters.
type CountStore interface {
	// MailboxCounts returns every counter for viewer in one aggregate query.
	MailboxCounts(ctx context.Context, viewer UserID) (*Counts, error)
}
