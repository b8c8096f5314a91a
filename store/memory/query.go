package memory

import (
	"context"
	"sort"

	"github.com/rbaliyan/msgbox/store"
)

// Find returns messages visible to q.Viewer matching q, newest first.
func (s *Store) Find(_ context.Context, q store.Query, opts store.ListOptions) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.match(q)
	s.mu.RUnlock()

	sortNewestFirst(matched)
	return store.Paginate(matched, opts), nil
}

// Count returns the number of messages matching q.
func (s *Store) Count(_ context.Context, q store.Query) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.match(q))), nil
}

// Conversations returns the latest active inbox message per group for viewer.
func (s *Store) Conversations(_ context.Context, viewer store.UserID, opts store.ListOptions) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	q := store.ConversationQuery(viewer)
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	visible := s.match(q)
	s.mu.RUnlock()

	return store.Paginate(store.LatestPerGroup(visible), opts), nil
}

// CountConversations returns the number of distinct groups visible to viewer.
func (s *Store) CountConversations(_ context.Context, viewer store.UserID) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	q := store.ConversationQuery(viewer)
	if err := q.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(distinctGroups(s.match(q)))), nil
}

// match returns clones of messages matching q. Caller must hold the read lock.
func (s *Store) match(q store.Query) []*store.Message {
	var out []*store.Message
	for id, rows := range s.states {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		for _, st := range rows {
			if q.Match(m, st) {
				out = append(out, m.Clone())
				break
			}
		}
	}
	return out
}

func distinctGroups(msgs []*store.Message) map[string]struct{} {
	groups := make(map[string]struct{})
	for _, m := range msgs {
		if m.ConversationGroup != "" {
			groups[m.ConversationGroup] = struct{}{}
		}
	}
	return groups
}

func sortNewestFirst(msgs []*store.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
}
