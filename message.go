package msgbox

import (
	"fmt"

	"github.com/rbaliyan/msgbox/store"
)

// Type aliases for commonly used store types.
// These allow users to work with the msgbox package without importing store directly.
type (
	UserID       = store.UserID
	Message      = store.Message
	MessageState = store.MessageState
	MessageType  = store.MessageType
	Status       = store.Status
	Counts       = store.Counts
	ListOptions  = store.ListOptions
)

// Re-exported constants.
const (
	NoUser = store.NoUser

	TypeInbox      = store.TypeInbox
	TypeInvitation = store.TypeInvitation
	TypeAlert      = store.TypeAlert

	StatusActive   = store.StatusActive
	StatusArchived = store.StatusArchived
	StatusTrashed  = store.StatusTrashed
)

// Opponent returns the participant of msg that is not viewer.
// It reports false when viewer is neither sender nor recipient, or when the
// other side is absent, as with alerts.
func Opponent(msg *Message, viewer UserID) (UserID, bool) {
	if msg == nil || !viewer.Valid() {
		return NoUser, false
	}
	var other UserID
	switch viewer {
	case msg.SenderID:
		other = msg.RecipientID
	case msg.RecipientID:
		other = msg.SenderID
	default:
		return NoUser, false
	}
	if !other.Valid() {
		return NoUser, false
	}
	return other, true
}

// IsRead reports whether msg has been read.
func IsRead(msg *Message) bool {
	return msg != nil && msg.IsRead
}

// IsInbox reports whether msg is a direct inbox message.
func IsInbox(msg *Message) bool {
	return msg != nil && msg.Type == TypeInbox
}

// WroteAtFormatted renders the creation time of msg as "Mar 01, 2024 -  2:05 PM".
// The 12-hour clock is padded with a space, which time layouts cannot express.
func WroteAtFormatted(msg *Message) string {
	if msg == nil {
		return ""
	}
	t := msg.CreatedAt
	return fmt.Sprintf("%s - %2s%s", t.Format("Jan 02, 2006"), t.Format("3"), t.Format(":04 PM"))
}
