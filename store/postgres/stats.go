package postgres

import (
	"context"
	"fmt"

	"github.com/rbaliyan/msgbox/store"
)

// MailboxCounts returns every counter for viewer using conditional aggregation
// in a single query.
func (s *Store) MailboxCounts(ctx context.Context, viewer store.UserID) (*store.Counts, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !viewer.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE s.status = $2 AND m.type = $5) AS inbox,
			COUNT(*) FILTER (WHERE s.status = $2 AND m.type = $6) AS invitations,
			COUNT(*) FILTER (WHERE s.status = $2 AND m.type = $7) AS alerts,
			COUNT(*) FILTER (WHERE s.status = $3) AS archived,
			COUNT(*) FILTER (WHERE s.status = $4) AS trashed,
			COUNT(*) FILTER (WHERE s.status = $2 AND NOT m.is_read) AS new,
			COUNT(DISTINCT m.conversation_group) FILTER (WHERE s.status = $2 AND m.type = $5) AS conversations
		FROM %s m
		JOIN %s s ON s.message_id = m.id
		WHERE s.user_id = $1
	`, s.opts.messagesTable, s.opts.statesTable)

	var row countsRow
	err := s.db.GetContext(ctx, &row, query,
		int64(viewer),
		string(store.StatusActive), string(store.StatusArchived), string(store.StatusTrashed),
		string(store.TypeInbox), string(store.TypeInvitation), string(store.TypeAlert),
	)
	if err != nil {
		return nil, fmt.Errorf("mailbox counts: %w", err)
	}

	return &store.Counts{
		Inbox:         row.Inbox,
		Invitations:   row.Invitations,
		Alerts:        row.Alerts,
		Archived:      row.Archived,
		Trashed:       row.Trashed,
		New:           row.New,
		Conversations: row.Conversations,
	}, nil
}
