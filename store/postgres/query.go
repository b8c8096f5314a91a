package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rbaliyan/msgbox/store"
)

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s m WHERE m.id = $1`, messageColumns, s.opts.messagesTable)

	var row messageRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return row.toMessage(), nil
}

// Find returns messages visible to q.Viewer matching q, newest first.
func (s *Store) Find(ctx context.Context, q store.Query, opts store.ListOptions) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args := buildWhere(q)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s m
		JOIN %s s ON s.message_id = m.id
		WHERE %s
		ORDER BY m.created_at DESC, m.id DESC
	`, messageColumns, s.opts.messagesTable, s.opts.statesTable, where)
	query, args = paginate(query, args, opts)

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	return toMessages(rows), nil
}

// Count returns the number of messages matching q.
func (s *Store) Count(ctx context.Context, q store.Query) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args := buildWhere(q)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s m
		JOIN %s s ON s.message_id = m.id
		WHERE %s
	`, s.opts.messagesTable, s.opts.statesTable, where)

	var n int64
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Conversations returns the latest active inbox message per group for viewer.
//
// The reduction runs in two steps: latest picks max(created_at) per group over
// the viewer's visible rows, then picked joins back to break ties by ID.
func (s *Store) Conversations(ctx context.Context, viewer store.UserID, opts store.ListOptions) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !viewer.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		WITH visible AS (
			SELECT m.id, m.conversation_group, m.created_at
			FROM %[1]s m
			JOIN %[2]s s ON s.message_id = m.id
			WHERE s.user_id = $1 AND s.status = $2 AND m.type = $3
			  AND m.conversation_group IS NOT NULL
		),
		latest AS (
			SELECT conversation_group, MAX(created_at) AS created_at
			FROM visible
			GROUP BY conversation_group
		),
		picked AS (
			SELECT v.conversation_group, MAX(v.id::text) AS id
			FROM visible v
			JOIN latest l ON l.conversation_group = v.conversation_group
			             AND l.created_at = v.created_at
			GROUP BY v.conversation_group
		)
		SELECT %[3]s
		FROM %[1]s m
		JOIN picked p ON m.id::text = p.id
		ORDER BY m.conversation_group ASC, m.created_at DESC
	`, s.opts.messagesTable, s.opts.statesTable, messageColumns)
	args := []any{int64(viewer), string(store.StatusActive), string(store.TypeInbox)}
	query, args = paginate(query, args, opts)

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return toMessages(rows), nil
}

// CountConversations returns the number of distinct groups visible to viewer.
func (s *Store) CountConversations(ctx context.Context, viewer store.UserID) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if !viewer.Valid() {
		return 0, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT COUNT(DISTINCT m.conversation_group)
		FROM %s m
		JOIN %s s ON s.message_id = m.id
		WHERE s.user_id = $1 AND s.status = $2 AND m.type = $3
	`, s.opts.messagesTable, s.opts.statesTable)

	var n int64
	err := s.db.GetContext(ctx, &n, query, int64(viewer), string(store.StatusActive), string(store.TypeInbox))
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// buildWhere renders q as a WHERE clause over m (messages) and s (states).
func buildWhere(q store.Query) (string, []any) {
	clauses := []string{"s.user_id = $1"}
	args := []any{int64(q.Viewer)}

	add := func(cond string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}
	if q.Status != "" {
		add("s.status = $%d", string(q.Status))
	}
	if q.Type != "" {
		add("m.type = $%d", string(q.Type))
	}
	if q.ConversationGroup != "" {
		add("m.conversation_group = $%d", q.ConversationGroup)
	}
	if q.UnreadOnly {
		clauses = append(clauses, "NOT m.is_read")
	}
	return strings.Join(clauses, " AND "), args
}

// paginate appends LIMIT and OFFSET placeholders.
func paginate(query string, args []any, opts store.ListOptions) (string, []any) {
	if opts.Bounded() {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
