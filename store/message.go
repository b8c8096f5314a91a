package store

import (
	"strconv"
	"time"
)

// UserID identifies a participant. NoUser marks an absent participant,
// such as the sender of an alert.
type UserID int64

// NoUser is the zero UserID. It is stored as NULL.
const NoUser UserID = 0

// Valid reports whether the id refers to a user.
func (u UserID) Valid() bool { return u > 0 }

func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

// MessageType discriminates message kinds. It never changes after creation.
type MessageType string

// Message types.
const (
	TypeInbox      MessageType = "inbox"
	TypeInvitation MessageType = "invitation"
	TypeAlert      MessageType = "alert"
)

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	switch t {
	case TypeInbox, TypeInvitation, TypeAlert:
		return true
	}
	return false
}

func (t MessageType) String() string { return string(t) }

// Status is the visibility of a message for one viewer.
type Status string

// State statuses.
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusTrashed  Status = "trashed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusTrashed:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Message is a persisted message.
type Message struct {
	ID          string
	SenderID    UserID
	RecipientID UserID
	Body        string
	Type        MessageType
	// ConversationGroup is empty unless Type is TypeInbox and both
	// participants are known.
	ConversationGroup string
	IsRead            bool
	CreatedAt         time.Time
}

// HasSender reports whether the message is attributable to a user.
func (m *Message) HasSender() bool {
	return m != nil && m.SenderID.Valid()
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// MessageState is the per-viewer row of a message.
type MessageState struct {
	ID        string
	MessageID string
	UserID    UserID
	Status    Status
	CreatedAt time.Time
}

// Clone returns a copy of the state.
func (s *MessageState) Clone() *MessageState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// MessageData is the input for creating a message.
type MessageData struct {
	SenderID          UserID
	RecipientID       UserID
	Body              string
	Type              MessageType
	ConversationGroup string
}
