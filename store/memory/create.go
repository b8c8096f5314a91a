package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/msgbox/store"
)

// CreateMessage persists the message and its state rows under one write lock.
// Nothing is stored if any state row is rejected.
func (s *Store) CreateMessage(_ context.Context, data store.MessageData, viewers []store.UserID) (*store.Message, []*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.newMessage(data)
	rows := make([]*store.MessageState, 0, len(viewers))
	seen := make(map[store.UserID]bool, len(viewers))
	for _, v := range viewers {
		if !v.Valid() {
			return nil, nil, &store.StateError{UserID: v, Err: store.ErrInvalidID}
		}
		if seen[v] {
			return nil, nil, &store.StateError{UserID: v, Err: store.ErrDuplicateEntry}
		}
		seen[v] = true
		rows = append(rows, s.newState(m.ID, v, m.CreatedAt))
	}

	s.messages[m.ID] = m
	s.states[m.ID] = rows

	out := make([]*store.MessageState, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return m.Clone(), out, nil
}

// InsertMessage persists only the message row.
func (s *Store) InsertMessage(_ context.Context, data store.MessageData) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.newMessage(data)
	s.messages[m.ID] = m
	return m.Clone(), nil
}

// CreateState inserts an active state row for user.
func (s *Store) CreateState(_ context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" || !user.Valid() {
		return nil, store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, r := range s.states[messageID] {
		if r.UserID == user {
			return nil, store.ErrDuplicateEntry
		}
	}

	row := s.newState(messageID, user, s.now())
	s.states[messageID] = append(s.states[messageID], row)
	return row.Clone(), nil
}

func (s *Store) newMessage(data store.MessageData) *store.Message {
	return &store.Message{
		ID:                uuid.New().String(),
		SenderID:          data.SenderID,
		RecipientID:       data.RecipientID,
		Body:              data.Body,
		Type:              data.Type,
		ConversationGroup: data.ConversationGroup,
		CreatedAt:         s.now(),
	}
}

func (s *Store) newState(messageID string, user store.UserID, at time.Time) *store.MessageState {
	return &store.MessageState{
		ID:        uuid.New().String(),
		MessageID: messageID,
		UserID:    user,
		Status:    store.StatusActive,
		CreatedAt: at,
	}
}
