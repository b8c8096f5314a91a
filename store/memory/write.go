package memory

import (
	"context"

	"github.com/rbaliyan/msgbox/store"
)

// MarkRead sets the read flag on a message.
func (s *Store) MarkRead(_ context.Context, id string, read bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	m.IsRead = read
	return nil
}

// Delete removes a message and its state rows.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.messages, id)
	delete(s.states, id)
	return nil
}

// States returns the state rows of a message in creation order.
func (s *Store) States(_ context.Context, messageID string) ([]*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.messages[messageID]; !ok {
		return nil, store.ErrNotFound
	}
	rows := s.states[messageID]
	out := make([]*store.MessageState, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// State returns the state row of user for a message.
func (s *Store) State(_ context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" || !user.Valid() {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.states[messageID] {
		if r.UserID == user {
			return r.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// SetStatus changes the status of the user's state row.
func (s *Store) SetStatus(_ context.Context, messageID string, user store.UserID, status store.Status) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" || !user.Valid() {
		return store.ErrInvalidID
	}
	if !status.IsValid() {
		return store.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.states[messageID] {
		if r.UserID == user {
			r.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}
