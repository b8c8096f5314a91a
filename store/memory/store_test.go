package memory

import (
	"context"
	"testing"

	"github.com/rbaliyan/msgbox/store"
	"github.com/rbaliyan/msgbox/store/storetest"
)

func newConnected(t *testing.T) store.Store {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, newConnected)
}

func TestConnectLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "x"); err != store.ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Connect(ctx); err != store.ErrAlreadyConnected {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCreatedAtStrictlyIncreases(t *testing.T) {
	s := newConnected(t).(*Store)
	ctx := context.Background()

	var prev *store.Message
	for i := 0; i < 50; i++ {
		m, err := s.InsertMessage(ctx, store.MessageData{RecipientID: 1, Body: "x", Type: store.TypeAlert})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if prev != nil && !m.CreatedAt.After(prev.CreatedAt) {
			t.Fatalf("created_at did not increase: %v then %v", prev.CreatedAt, m.CreatedAt)
		}
		prev = m
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := newConnected(t).(*Store)
	ctx := context.Background()

	m, _, err := s.CreateMessage(ctx, store.MessageData{SenderID: 1, RecipientID: 2, Body: "hi", Type: store.TypeInbox, ConversationGroup: "2_1"}, []store.UserID{2, 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m.Body = "changed"

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "hi" {
		t.Errorf("expected stored body to be unaffected, got %q", got.Body)
	}

	msgs, states := s.Len()
	if msgs != 1 || states != 2 {
		t.Errorf("expected 1 message and 2 states, got %d and %d", msgs, states)
	}
}
