package memory

import (
	"context"

	"github.com/rbaliyan/msgbox/store"
)

// MailboxCounts computes every counter for viewer in one pass under the read lock.
func (s *Store) MailboxCounts(_ context.Context, viewer store.UserID) (*store.Counts, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !viewer.Valid() {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &store.Counts{}
	groups := make(map[string]struct{})
	for id, rows := range s.states {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		for _, st := range rows {
			if st.UserID != viewer {
				continue
			}
			switch st.Status {
			case store.StatusArchived:
				c.Archived++
			case store.StatusTrashed:
				c.Trashed++
			case store.StatusActive:
				if !m.IsRead {
					c.New++
				}
				switch m.Type {
				case store.TypeInbox:
					c.Inbox++
					if m.ConversationGroup != "" {
						groups[m.ConversationGroup] = struct{}{}
					}
				case store.TypeInvitation:
					c.Invitations++
				case store.TypeAlert:
					c.Alerts++
				}
			}
		}
	}
	c.Conversations = int64(len(groups))
	return c, nil
}
