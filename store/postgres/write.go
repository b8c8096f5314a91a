package postgres

import (
	"context"
	"fmt"

	"github.com/rbaliyan/msgbox/store"
)

// MarkRead sets the read flag on a message.
func (s *Store) MarkRead(ctx context.Context, id string, read bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if !validID(id) {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET is_read = $1 WHERE id = $2`, s.opts.messagesTable)
	return s.execOne(ctx, "mark read", query, read, id)
}

// Delete removes a message. State rows follow through ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if !validID(id) {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.opts.messagesTable)
	return s.execOne(ctx, "delete message", query, id)
}

// States returns the state rows of a message in creation order.
func (s *Store) States(ctx context.Context, messageID string) ([]*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !validID(messageID) {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.Get(ctx, messageID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE message_id = $1
		ORDER BY created_at ASC, id ASC
	`, stateColumns, s.opts.statesTable)

	var rows []stateRow
	if err := s.db.SelectContext(ctx, &rows, query, messageID); err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	out := make([]*store.MessageState, len(rows))
	for i := range rows {
		out[i] = rows[i].toState()
	}
	return out, nil
}

// State returns the state row of user for a message.
func (s *Store) State(ctx context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !validID(messageID) || !user.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE message_id = $1 AND user_id = $2`,
		stateColumns, s.opts.statesTable)

	var rows []stateRow
	if err := s.db.SelectContext(ctx, &rows, query, messageID, int64(user)); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0].toState(), nil
}

// SetStatus changes the status of the user's state row.
func (s *Store) SetStatus(ctx context.Context, messageID string, user store.UserID, status store.Status) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if !validID(messageID) || !user.Valid() {
		return store.ErrInvalidID
	}
	if !status.IsValid() {
		return store.ErrInvalidStatus
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET status = $1 WHERE message_id = $2 AND user_id = $3`, s.opts.statesTable)
	return s.execOne(ctx, "set status", query, string(status), messageID, int64(user))
}

// execOne runs a statement that must affect exactly one row.
func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
