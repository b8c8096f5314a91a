package msgbox

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/event/v3/transport/channel"
	"github.com/rbaliyan/msgbox/store"
)

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("store is required", func(t *testing.T) {
		if _, err := NewService(); !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("connect twice", func(t *testing.T) {
		svc, _ := setupService(t)
		if !svc.IsConnected() {
			t.Fatal("expected connected")
		}
		if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("expected ErrAlreadyConnected, got %v", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		svc, _ := setupService(t)
		if err := svc.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := svc.Close(ctx); err != nil {
			t.Errorf("second close: %v", err)
		}
		if svc.IsConnected() {
			t.Error("expected disconnected")
		}
		if _, err := svc.Client(1).InboxCount(ctx); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("invalid user", func(t *testing.T) {
		svc, _ := setupService(t)
		mb := svc.Client(NoUser)
		if _, err := mb.InboxCount(ctx); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("expected ErrInvalidUserID, got %v", err)
		}
		if _, err := mb.SendInbox(ctx, 9, "hi"); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("expected ErrInvalidUserID, got %v", err)
		}
	})

	t.Run("custom event transport", func(t *testing.T) {
		svc, _ := setupService(t, WithEventTransport(channel.New()))
		if svc.Events() == nil {
			t.Fatal("expected events after connect")
		}
		send(t, svc, 1, 2, "hi")
	})
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	send(t, svc, 5, 9, "hi")
	send(t, svc, 9, 5, "hello")
	send(t, svc, 5, 7, "yo")

	t.Run("latest message per conversation", func(t *testing.T) {
		got, err := svc.Client(5).Conversations(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("conversations: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 conversations, got %d", len(got))
		}
		// Ordered by group key: "7_5" before "9_5".
		if got[0].ConversationGroup != "7_5" || got[0].Body != "yo" {
			t.Errorf("unexpected first conversation: %+v", got[0])
		}
		if got[1].ConversationGroup != "9_5" || got[1].Body != "hello" {
			t.Errorf("unexpected second conversation: %+v", got[1])
		}
	})

	t.Run("count matches distinct groups", func(t *testing.T) {
		for _, tc := range []struct {
			user UserID
			want int64
		}{{5, 2}, {9, 1}, {7, 1}, {42, 0}} {
			n, err := svc.Client(tc.user).ConversationsCount(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if n != tc.want {
				t.Errorf("user %d: expected %d, got %d", tc.user, tc.want, n)
			}
		}
	})

	t.Run("pagination applies to representatives", func(t *testing.T) {
		got, err := svc.Client(5).Conversations(ctx, ListOptions{Offset: 1, Limit: 1})
		if err != nil {
			t.Fatalf("conversations: %v", err)
		}
		if len(got) != 1 || got[0].ConversationGroup != "9_5" {
			t.Errorf("expected second conversation only, got %+v", got)
		}
	})

	t.Run("conversation between two users", func(t *testing.T) {
		got, err := svc.Client(9).Conversation(ctx, 5, ListOptions{})
		if err != nil {
			t.Fatalf("conversation: %v", err)
		}
		if len(got) != 2 || got[0].Body != "hello" || got[1].Body != "hi" {
			t.Errorf("expected [hello hi], got %+v", got)
		}
		if _, err := svc.Client(9).Conversation(ctx, NoUser, ListOptions{}); !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("trashing falls back to the previous message", func(t *testing.T) {
		mb := svc.Client(5)
		latest, err := mb.Conversation(ctx, 9, ListOptions{Limit: 1})
		if err != nil || len(latest) != 1 {
			t.Fatalf("conversation: %v", err)
		}
		if err := mb.Trash(ctx, latest[0].ID); err != nil {
			t.Fatalf("trash: %v", err)
		}
		got, err := mb.Conversations(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("conversations: %v", err)
		}
		if len(got) != 2 || got[1].Body != "hi" {
			t.Errorf("expected fallback to hi, got %+v", got)
		}

		// The other participant still sees the trashed message.
		other, err := svc.Client(9).Conversations(ctx, ListOptions{})
		if err != nil || len(other) != 1 || other[0].Body != "hello" {
			t.Errorf("expected hello for user 9, got %+v, %v", other, err)
		}
	})
}

func TestMailboxCounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	inbox := send(t, svc, 5, 9, "hi")
	archived := send(t, svc, 5, 9, "old")
	if _, err := svc.CreateInvitation(ctx, CreateRequest{SenderID: 5, RecipientID: 9, Body: "join"}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	alert, err := svc.CreateAlert(ctx, CreateRequest{RecipientID: 9, Body: "system"})
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	trashed, err := svc.CreateAlert(ctx, CreateRequest{RecipientID: 9, Body: "gone"})
	if err != nil {
		t.Fatalf("alert: %v", err)
	}

	mb := svc.Client(9)
	if err := mb.Archive(ctx, archived.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := mb.Trash(ctx, trashed.ID); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if err := mb.MarkRead(ctx, alert.ID, true); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	checks := []struct {
		name string
		fn   func(context.Context) (int64, error)
		want int64
	}{
		{"inbox", mb.InboxCount, 1},
		{"invitations", mb.InvitationsCount, 1},
		{"alerts", mb.AlertsCount, 1},
		{"archived", mb.ArchivedCount, 1},
		{"trashed", mb.TrashedCount, 1},
		{"new", mb.NewCount, 2}, // inbox and invitation; the alert was read
		{"conversations", mb.ConversationsCount, 1},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.fn(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if got != c.want {
				t.Errorf("expected %d, got %d", c.want, got)
			}
		})
	}

	t.Run("counts match individual queries", func(t *testing.T) {
		counts, err := mb.Counts(ctx)
		if err != nil {
			t.Fatalf("counts: %v", err)
		}
		want := Counts{Inbox: 1, Invitations: 1, Alerts: 1, Archived: 1, Trashed: 1, New: 2, Conversations: 1}
		if *counts != want {
			t.Errorf("expected %+v, got %+v", want, *counts)
		}
	})

	t.Run("sender view", func(t *testing.T) {
		sender := svc.Client(5)
		n, err := sender.InboxCount(ctx)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		// Both inbox messages stay active for the sender; the invitation is not theirs.
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
		if n, _ := sender.InvitationsCount(ctx); n != 0 {
			t.Errorf("expected no invitations for sender, got %d", n)
		}
	})

	t.Run("lists", func(t *testing.T) {
		invites, err := mb.Invitations(ctx, ListOptions{})
		if err != nil || len(invites) != 1 || invites[0].Body != "join" {
			t.Errorf("unexpected invitations: %+v, %v", invites, err)
		}
		alerts, err := mb.Alerts(ctx, ListOptions{})
		if err != nil || len(alerts) != 1 || alerts[0].ID != alert.ID {
			t.Errorf("unexpected alerts: %+v, %v", alerts, err)
		}
		if alerts[0].HasSender() {
			t.Error("alert must not have a sender")
		}
		if _, ok := mb.Opponent(alerts[0]); ok {
			t.Error("alert must not have an opponent")
		}
		if other, ok := mb.Opponent(inbox); !ok || other != 5 {
			t.Errorf("expected opponent 5, got %d, %v", other, ok)
		}
	})
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc, mem := setupService(t)
	msg := send(t, svc, 5, 9, "hi")
	mb := svc.Client(9)

	status := func(user UserID) Status {
		t.Helper()
		st, err := mem.State(ctx, msg.ID, user)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		return st.Status
	}

	if err := mb.Archive(ctx, msg.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got := status(9); got != StatusArchived {
		t.Errorf("expected archived, got %s", got)
	}
	if got := status(5); got != StatusActive {
		t.Errorf("sender state must not change, got %s", got)
	}

	if err := mb.Trash(ctx, msg.ID); !IsValidationError(err) {
		t.Errorf("expected archived to trashed to be rejected, got %v", err)
	}
	if err := mb.Archive(ctx, msg.ID); err != nil {
		t.Errorf("archiving twice should be a no-op, got %v", err)
	}

	if err := mb.Restore(ctx, msg.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := mb.Trash(ctx, msg.ID); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if got := status(9); got != StatusTrashed {
		t.Errorf("expected trashed, got %s", got)
	}

	if err := svc.Client(42).Archive(ctx, msg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for stranger, got %v", err)
	}
}

func TestGetAndMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	msg := send(t, svc, 5, 9, "hi")

	got, err := svc.Client(9).Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "hi" || IsRead(got) {
		t.Errorf("unexpected message: %+v", got)
	}

	if _, err := svc.Client(42).Get(ctx, msg.ID); !errors.Is(err, ErrNotFound) || !IsNotFoundError(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := svc.Client(9).MarkRead(ctx, msg.ID, true); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, err = svc.Client(5).Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !IsRead(got) {
		t.Error("read flag is shared by both participants")
	}
	if err := svc.Client(42).MarkRead(ctx, msg.ID, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	svc, mem := setupService(t)
	msg := send(t, svc, 5, 9, "hi")
	send(t, svc, 5, 9, "keep")

	if err := svc.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if msgs, states := mem.Len(); msgs != 1 || states != 2 {
		t.Errorf("expected 1 message and 2 states, got %d and %d", msgs, states)
	}
	if _, err := svc.Client(9).Get(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := svc.DeleteMessage(ctx, msg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMailboxShortcuts(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	mb := svc.Client(5)

	msg, err := mb.SendInbox(ctx, 9, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.SenderID != 5 || msg.RecipientID != 9 || msg.Type != TypeInbox {
		t.Errorf("unexpected message: %+v", msg)
	}

	inv, err := mb.Invite(ctx, 9, "join")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.Type != TypeInvitation || inv.ConversationGroup != "" {
		t.Errorf("unexpected invitation: %+v", inv)
	}
	if n, _ := svc.Client(9).InvitationsCount(ctx); n != 1 {
		t.Errorf("expected 1 invitation, got %d", n)
	}
}

func TestListLimitIsCapped(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t, WithMaxQueryLimit(2))
	for i := 0; i < 4; i++ {
		if _, err := svc.CreateAlert(ctx, CreateRequest{RecipientID: 3, Body: "a"}); err != nil {
			t.Fatalf("alert: %v", err)
		}
	}
	mb := svc.Client(3)

	capped, err := mb.Alerts(ctx, ListOptions{Limit: 50})
	if err != nil || len(capped) != 2 {
		t.Errorf("expected 2 alerts, got %d, %v", len(capped), err)
	}
	all, err := mb.Alerts(ctx, ListOptions{})
	if err != nil || len(all) != 4 {
		t.Errorf("expected unbounded list of 4, got %d, %v", len(all), err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatal("alerts must be newest first")
		}
	}
}
