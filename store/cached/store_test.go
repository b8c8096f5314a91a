package cached

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rbaliyan/msgbox/store"
	"github.com/rbaliyan/msgbox/store/memory"
	"github.com/redis/go-redis/v9"
)

func setup(t *testing.T) (*Store, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	backend := memory.New()
	s, mr := setupWith(t, backend)
	return s, backend, mr
}

func setupWith(t *testing.T, backend store.Store) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := backend.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return New(backend, client, WithTTL(time.Minute)), mr
}

func inbox(from, to store.UserID) store.MessageData {
	return store.MessageData{SenderID: from, RecipientID: to, Body: "hi", Type: store.TypeInbox, ConversationGroup: "9_5"}
}

func TestMailboxCountsCaches(t *testing.T) {
	ctx := context.Background()
	s, backend, mr := setup(t)

	if _, _, err := s.CreateMessage(ctx, inbox(5, 9), []store.UserID{9, 5}); err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := s.MailboxCounts(ctx, 9)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Inbox != 1 || c.New != 1 || c.Conversations != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if !mr.Exists("msgbox:counts:9") {
		t.Fatal("expected counts to be cached")
	}

	// A write that bypasses the wrapper is not visible until invalidation.
	if _, _, err := backend.CreateMessage(ctx, inbox(5, 9), []store.UserID{9, 5}); err != nil {
		t.Fatalf("backend create: %v", err)
	}
	c, err = s.MailboxCounts(ctx, 9)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Inbox != 1 {
		t.Errorf("expected cached inbox count 1, got %d", c.Inbox)
	}

	mr.FastForward(2 * time.Minute)
	c, err = s.MailboxCounts(ctx, 9)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Inbox != 2 {
		t.Errorf("expected refreshed inbox count 2 after ttl, got %d", c.Inbox)
	}
}

func TestWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setup(t)

	m, _, err := s.CreateMessage(ctx, inbox(5, 9), []store.UserID{9, 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.MailboxCounts(ctx, 9); err != nil {
		t.Fatalf("counts: %v", err)
	}
	if _, err := s.MailboxCounts(ctx, 5); err != nil {
		t.Fatalf("counts: %v", err)
	}

	t.Run("SetStatus", func(t *testing.T) {
		if err := s.SetStatus(ctx, m.ID, 9, store.StatusArchived); err != nil {
			t.Fatalf("set status: %v", err)
		}
		if mr.Exists("msgbox:counts:9") {
			t.Error("expected viewer 9 to be invalidated")
		}
		if !mr.Exists("msgbox:counts:5") {
			t.Error("expected viewer 5 to stay cached")
		}
		c, _ := s.MailboxCounts(ctx, 9)
		if c.Archived != 1 || c.Inbox != 0 {
			t.Errorf("unexpected counts %+v", c)
		}
	})

	t.Run("MarkRead", func(t *testing.T) {
		if err := s.MarkRead(ctx, m.ID, true); err != nil {
			t.Fatalf("mark read: %v", err)
		}
		if mr.Exists("msgbox:counts:9") || mr.Exists("msgbox:counts:5") {
			t.Error("expected both viewers to be invalidated")
		}
		c, _ := s.MailboxCounts(ctx, 5)
		if c.New != 0 {
			t.Errorf("expected no new messages, got %d", c.New)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if _, err := s.MailboxCounts(ctx, 5); err != nil {
			t.Fatalf("counts: %v", err)
		}
		if err := s.Delete(ctx, m.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if mr.Exists("msgbox:counts:5") {
			t.Error("expected viewer 5 to be invalidated")
		}
		n, err := s.CountConversations(ctx, 5)
		if err != nil {
			t.Fatalf("count conversations: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 conversations, got %d", n)
		}
	})
}

func TestRedisUnavailableFallsBack(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setup(t)

	if _, _, err := s.CreateMessage(ctx, inbox(5, 9), []store.UserID{9, 5}); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.Close()

	c, err := s.MailboxCounts(ctx, 5)
	if err != nil {
		t.Fatalf("expected backend fallback, got %v", err)
	}
	if c.Inbox != 1 {
		t.Errorf("expected inbox 1, got %d", c.Inbox)
	}
}

func TestInvalidViewer(t *testing.T) {
	s, _, _ := setup(t)
	if _, err := s.MailboxCounts(context.Background(), store.NoUser); err != store.ErrInvalidID {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

// interleavingBackend runs duringCounts once, after the backend has computed
// counters and before they are returned to the cache.
type interleavingBackend struct {
	*memory.Store
	duringCounts func()
}

func (b *interleavingBackend) MailboxCounts(ctx context.Context, viewer store.UserID) (*store.Counts, error) {
	c, err := b.Store.MailboxCounts(ctx, viewer)
	if f := b.duringCounts; f != nil {
		b.duringCounts = nil
		f()
	}
	return c, err
}

func TestWriteDuringLoadIsNotHidden(t *testing.T) {
	ctx := context.Background()
	backend := &interleavingBackend{Store: memory.New()}
	s, mr := setupWith(t, backend)

	backend.duringCounts = func() {
		if _, _, err := s.CreateMessage(ctx, inbox(5, 9), []store.UserID{9, 5}); err != nil {
			t.Errorf("create: %v", err)
		}
	}

	c, err := s.MailboxCounts(ctx, 9)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Inbox != 0 {
		t.Fatalf("expected the load to see the state before the write, got %+v", c)
	}
	if mr.Exists("msgbox:counts:9") {
		t.Fatal("counters loaded before the write must not be cached")
	}

	c, err = s.MailboxCounts(ctx, 9)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Inbox != 1 || c.Conversations != 1 {
		t.Errorf("expected fresh counters, got %+v", c)
	}

	n, err := s.CountConversations(ctx, 9)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	convs, err := s.Conversations(ctx, 9, store.ListOptions{})
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if n != int64(len(convs)) {
		t.Errorf("cached conversation count %d, backend lists %d", n, len(convs))
	}
	if !mr.Exists("msgbox:counts:9") {
		t.Error("expected counters loaded after the write to be cached")
	}
}

func TestInvalidateAdvancesGeneration(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setup(t)

	s.Invalidate(ctx, 9, store.NoUser)
	s.Invalidate(ctx, 9)

	got, err := mr.Get("msgbox:counts:gen:9")
	if err != nil {
		t.Fatalf("get generation: %v", err)
	}
	if got != "2" {
		t.Errorf("expected generation 2, got %q", got)
	}
	if mr.Exists("msgbox:counts:gen:0") {
		t.Error("invalid viewers must be ignored")
	}
}
