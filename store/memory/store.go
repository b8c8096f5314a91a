// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/msgbox/store"
)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
//
// A single RWMutex guards both tables so that a message and its state rows
// become visible together.
type Store struct {
	mu       sync.RWMutex
	messages map[string]*store.Message
	states   map[string][]*store.MessageState // message ID -> rows in creation order
	lastTime time.Time

	connected int32
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		messages: make(map[string]*store.Message),
		states:   make(map[string][]*store.MessageState),
	}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// now returns a strictly increasing timestamp. Caller must hold the write lock.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = t
	return t
}

// Get retrieves a message by ID.
func (s *Store) Get(_ context.Context, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// Len returns the number of stored messages and state rows.
func (s *Store) Len() (messages, states int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rows := range s.states {
		states += len(rows)
	}
	return len(s.messages), states
}

// Compile-time check
var _ store.Store = (*Store)(nil)
