package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/msgbox/store"
)

// CreateMessage inserts the message and its state rows in one transaction.
// A failing state row rolls back the message.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData, viewers []store.UserID) (*store.Message, []*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msg, err := s.insertMessage(ctx, tx, data)
	if err != nil {
		return nil, nil, err
	}

	states := make([]*store.MessageState, 0, len(viewers))
	for _, v := range viewers {
		st, err := s.insertState(ctx, tx, msg.ID, v)
		if err != nil {
			return nil, nil, &store.StateError{UserID: v, Err: err}
		}
		states = append(states, st)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%w: commit: %v", store.ErrTransactionFailed, err)
	}
	return msg, states, nil
}

// InsertMessage inserts only the message row.
func (s *Store) InsertMessage(ctx context.Context, data store.MessageData) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	return s.insertMessage(ctx, s.db, data)
}

// CreateState inserts an active state row for user.
func (s *Store) CreateState(ctx context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !validID(messageID) || !user.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	return s.insertState(ctx, s.db, messageID, user)
}

func (s *Store) insertMessage(ctx context.Context, q sqlx.QueryerContext, data store.MessageData) (*store.Message, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, sender_id, recipient_id, body, type, conversation_group)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, sender_id, recipient_id, body, type, conversation_group, is_read, created_at
	`, s.opts.messagesTable)

	var row messageRow
	err := q.QueryRowxContext(ctx, query,
		uuid.New().String(), nullUser(data.SenderID), int64(data.RecipientID),
		data.Body, string(data.Type), nullString(data.ConversationGroup),
	).StructScan(&row)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return row.toMessage(), nil
}

func (s *Store) insertState(ctx context.Context, q sqlx.QueryerContext, messageID string, user store.UserID) (*store.MessageState, error) {
	if !user.Valid() {
		return nil, store.ErrInvalidID
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, message_id, user_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, s.opts.statesTable, stateColumns)

	var row stateRow
	err := q.QueryRowxContext(ctx, query,
		uuid.New().String(), messageID, int64(user), string(store.StatusActive),
	).StructScan(&row)
	if err != nil {
		return nil, mapStateErr(err)
	}
	return row.toState(), nil
}
