package mongo

import (
	"time"

	"github.com/rbaliyan/msgbox/store"
)

// messageDoc is the MongoDB document for a message.
// sender_id and conversation_group are omitted when absent.
type messageDoc struct {
	ID                string    `bson:"_id"`
	SenderID          int64     `bson:"sender_id,omitempty"`
	RecipientID       int64     `bson:"recipient_id"`
	Body              string    `bson:"body"`
	Type              string    `bson:"type"`
	ConversationGroup string    `bson:"conversation_group,omitempty"`
	IsRead            bool      `bson:"is_read"`
	CreatedAt         time.Time `bson:"created_at"`
}

// stateDoc is the MongoDB document for a message state.
type stateDoc struct {
	ID        string    `bson:"_id"`
	MessageID string    `bson:"message_id"`
	UserID    int64     `bson:"user_id"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
}

func newMessageDoc(id string, data store.MessageData, now time.Time) *messageDoc {
	return &messageDoc{
		ID:                id,
		SenderID:          int64(data.SenderID),
		RecipientID:       int64(data.RecipientID),
		Body:              data.Body,
		Type:              string(data.Type),
		ConversationGroup: data.ConversationGroup,
		CreatedAt:         now,
	}
}

func (d *messageDoc) toMessage() *store.Message {
	return &store.Message{
		ID:                d.ID,
		SenderID:          store.UserID(d.SenderID),
		RecipientID:       store.UserID(d.RecipientID),
		Body:              d.Body,
		Type:              store.MessageType(d.Type),
		ConversationGroup: d.ConversationGroup,
		IsRead:            d.IsRead,
		CreatedAt:         d.CreatedAt.UTC(),
	}
}

func toMessages(docs []messageDoc) []*store.Message {
	out := make([]*store.Message, len(docs))
	for i := range docs {
		out[i] = docs[i].toMessage()
	}
	return out
}

func (d *stateDoc) toState() *store.MessageState {
	return &store.MessageState{
		ID:        d.ID,
		MessageID: d.MessageID,
		UserID:    store.UserID(d.UserID),
		Status:    store.Status(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
	}
}
