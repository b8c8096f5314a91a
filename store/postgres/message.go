package postgres

import (
	"database/sql"
	"time"

	"github.com/rbaliyan/msgbox/store"
)

const messageColumns = `m.id, m.sender_id, m.recipient_id, m.body, m.type, m.conversation_group, m.is_read, m.created_at`

const stateColumns = `id, message_id, user_id, status, created_at`

// messageRow maps a messages row.
type messageRow struct {
	ID                string         `db:"id"`
	SenderID          sql.NullInt64  `db:"sender_id"`
	RecipientID       int64          `db:"recipient_id"`
	Body              string         `db:"body"`
	Type              string         `db:"type"`
	ConversationGroup sql.NullString `db:"conversation_group"`
	IsRead            bool           `db:"is_read"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r *messageRow) toMessage() *store.Message {
	m := &store.Message{
		ID:          r.ID,
		RecipientID: store.UserID(r.RecipientID),
		Body:        r.Body,
		Type:        store.MessageType(r.Type),
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.SenderID.Valid {
		m.SenderID = store.UserID(r.SenderID.Int64)
	}
	if r.ConversationGroup.Valid {
		m.ConversationGroup = r.ConversationGroup.String
	}
	return m
}

func toMessages(rows []messageRow) []*store.Message {
	out := make([]*store.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toMessage()
	}
	return out
}

// stateRow maps a message_states row.
type stateRow struct {
	ID        string    `db:"id"`
	MessageID string    `db:"message_id"`
	UserID    int64     `db:"user_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *stateRow) toState() *store.MessageState {
	return &store.MessageState{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    store.UserID(r.UserID),
		Status:    store.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// countsRow maps the single-row counters aggregate.
type countsRow struct {
	Inbox         int64 `db:"inbox"`
	Invitations   int64 `db:"invitations"`
	Alerts        int64 `db:"alerts"`
	Archived      int64 `db:"archived"`
	Trashed       int64 `db:"trashed"`
	New           int64 `db:"new"`
	Conversations int64 `db:"conversations"`
}

func nullUser(u store.UserID) sql.NullInt64 {
	if !u.Valid() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(u), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
