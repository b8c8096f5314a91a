// Package storetest provides a behavioural test suite shared by every
// store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/msgbox/store"
)

// Factory returns a connected, empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateMessage", func(t *testing.T) { testCreateMessage(t, newStore(t)) })
	t.Run("CreateMessageRejectsDuplicateViewer", func(t *testing.T) { testCreateDuplicateViewer(t, newStore(t)) })
	t.Run("InsertThenCreateState", func(t *testing.T) { testInsertThenState(t, newStore(t)) })
	t.Run("FindScopesByViewer", func(t *testing.T) { testFindScoped(t, newStore(t)) })
	t.Run("Conversations", func(t *testing.T) { testConversations(t, newStore(t)) })
	t.Run("MailboxCounts", func(t *testing.T) { testCounts(t, newStore(t)) })
	t.Run("SetStatus", func(t *testing.T) { testSetStatus(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDelete(t, newStore(t)) })
}

func inbox(from, to store.UserID, body, group string) store.MessageData {
	return store.MessageData{SenderID: from, RecipientID: to, Body: body, Type: store.TypeInbox, ConversationGroup: group}
}

func mustCreate(t *testing.T, s store.Store, data store.MessageData, viewers ...store.UserID) *store.Message {
	t.Helper()
	m, _, err := s.CreateMessage(context.Background(), data, viewers)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return m
}

func testCreateMessage(t *testing.T, s store.Store) {
	ctx := context.Background()
	m, states, err := s.CreateMessage(ctx, inbox(5, 9, "hi", "9_5"), []store.UserID{9, 5})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("expected persisted message, got %+v", m)
	}
	if m.IsRead {
		t.Error("expected new message to be unread")
	}
	if len(states) != 2 || states[0].UserID != 9 || states[1].UserID != 5 {
		t.Fatalf("expected states for [9 5], got %+v", states)
	}
	for _, st := range states {
		if st.Status != store.StatusActive {
			t.Errorf("expected active state, got %s", st.Status)
		}
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ConversationGroup != "9_5" || got.Body != "hi" || got.SenderID != 5 || got.RecipientID != 9 {
		t.Errorf("unexpected message %+v", got)
	}

	alert := mustCreate(t, s, store.MessageData{RecipientID: 3, Body: "system", Type: store.TypeAlert}, 3)
	got, err = s.Get(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Get alert: %v", err)
	}
	if got.HasSender() || got.ConversationGroup != "" {
		t.Errorf("expected alert without sender or group, got %+v", got)
	}

	if _, err := s.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testCreateDuplicateViewer(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, _, err := s.CreateMessage(ctx, inbox(5, 9, "hi", "9_5"), []store.UserID{9, 9})
	if !store.IsStateError(err) {
		t.Fatalf("expected StateError, got %v", err)
	}
	n, err := s.Count(ctx, store.Query{Viewer: 9})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback to leave 0 messages, got %d", n)
	}
}

func testInsertThenState(t *testing.T, s store.Store) {
	ctx := context.Background()
	m, err := s.InsertMessage(ctx, store.MessageData{SenderID: 1, RecipientID: 2, Body: "join", Type: store.TypeInvitation})
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	states, err := s.States(ctx, m.ID)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("expected no states yet, got %d", len(states))
	}

	if _, err := s.CreateState(ctx, m.ID, 2); err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	if _, err := s.CreateState(ctx, m.ID, 2); !errors.Is(err, store.ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}

	st, err := s.State(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.Status != store.StatusActive {
		t.Errorf("expected active, got %s", st.Status)
	}
	if _, err := s.State(ctx, m.ID, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for sender state, got %v", err)
	}
}

func testFindScoped(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := mustCreate(t, s, store.MessageData{SenderID: 1, RecipientID: 2, Body: "a", Type: store.TypeInvitation}, 2)
	second := mustCreate(t, s, store.MessageData{SenderID: 1, RecipientID: 2, Body: "b", Type: store.TypeInvitation}, 2)
	mustCreate(t, s, store.MessageData{RecipientID: 2, Body: "c", Type: store.TypeAlert}, 2)

	got, err := s.Find(ctx, store.Query{Viewer: 2, Status: store.StatusActive, Type: store.TypeInvitation}, store.ListOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("expected invitations newest first, got %+v", got)
	}

	got, err = s.Find(ctx, store.Query{Viewer: 2, Type: store.TypeInvitation}, store.ListOptions{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("Find page: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("expected second page to hold the older invitation, got %+v", got)
	}

	got, err = s.Find(ctx, store.Query{Viewer: 1}, store.ListOptions{})
	if err != nil {
		t.Fatalf("Find sender: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected sender of invitations to see nothing, got %d", len(got))
	}
}

func testConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, inbox(5, 9, "hi", "9_5"), 9, 5)
	hello := mustCreate(t, s, inbox(9, 5, "hello", "9_5"), 5, 9)
	other := mustCreate(t, s, inbox(5, 7, "yo", "7_5"), 7, 5)
	mustCreate(t, s, store.MessageData{SenderID: 1, RecipientID: 5, Body: "join", Type: store.TypeInvitation}, 5)

	convs, err := s.Conversations(ctx, 5, store.ListOptions{})
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != other.ID || convs[1].ID != hello.ID {
		t.Errorf("expected [7_5 latest, 9_5 latest], got [%s %s]", convs[0].Body, convs[1].Body)
	}

	n, err := s.CountConversations(ctx, 5)
	if err != nil {
		t.Fatalf("CountConversations: %v", err)
	}
	if n != int64(len(convs)) {
		t.Errorf("expected count %d, got %d", len(convs), n)
	}

	page, err := s.Conversations(ctx, 5, store.ListOptions{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("Conversations page: %v", err)
	}
	if len(page) != 1 || page[0].ID != hello.ID {
		t.Errorf("expected paginated representative, got %+v", page)
	}

	if err := s.SetStatus(ctx, hello.ID, 5, store.StatusTrashed); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	convs, err = s.Conversations(ctx, 5, store.ListOptions{})
	if err != nil {
		t.Fatalf("Conversations after trash: %v", err)
	}
	if len(convs) != 2 || convs[1].Body != "hi" {
		t.Errorf("expected 9_5 to fall back to the earlier message, got %+v", convs)
	}

	theirs, err := s.Conversations(ctx, 9, store.ListOptions{})
	if err != nil {
		t.Fatalf("Conversations for 9: %v", err)
	}
	if len(theirs) != 1 || theirs[0].ID != hello.ID {
		t.Errorf("expected trash by 5 not to affect 9, got %+v", theirs)
	}
}

func testCounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreate(t, s, inbox(5, 9, "hi", "9_5"), 9, 5)
	mustCreate(t, s, inbox(9, 5, "hello", "9_5"), 5, 9)
	b := mustCreate(t, s, store.MessageData{SenderID: 1, RecipientID: 9, Body: "join", Type: store.TypeInvitation}, 9)
	mustCreate(t, s, store.MessageData{RecipientID: 9, Body: "alert", Type: store.TypeAlert}, 9)

	if err := s.SetStatus(ctx, a.ID, 9, store.StatusArchived); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SetStatus(ctx, b.ID, 9, store.StatusTrashed); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.MarkRead(ctx, a.ID, true); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	c, err := s.MailboxCounts(ctx, 9)
	if err != nil {
		t.Fatalf("MailboxCounts: %v", err)
	}
	want := store.Counts{Inbox: 1, Alerts: 1, Archived: 1, Trashed: 1, New: 2, Conversations: 1}
	if *c != want {
		t.Errorf("expected %+v, got %+v", want, *c)
	}

	n, err := s.Count(ctx, store.Query{Viewer: 9, Status: store.StatusActive, UnreadOnly: true})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != c.New {
		t.Errorf("expected Count to agree with MailboxCounts.New=%d, got %d", c.New, n)
	}
}

func testSetStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := mustCreate(t, s, inbox(5, 9, "hi", "9_5"), 9, 5)

	if err := s.SetStatus(ctx, m.ID, 9, store.Status("gone")); !errors.Is(err, store.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := s.SetStatus(ctx, m.ID, 42, store.StatusArchived); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-participant, got %v", err)
	}
	if err := s.SetStatus(ctx, m.ID, 9, store.StatusArchived); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	mine, _ := s.State(ctx, m.ID, 9)
	theirs, _ := s.State(ctx, m.ID, 5)
	if mine.Status != store.StatusArchived || theirs.Status != store.StatusActive {
		t.Errorf("expected independent states, got %s / %s", mine.Status, theirs.Status)
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := mustCreate(t, s, inbox(5, 9, "hi", "9_5"), 9, 5)

	if err := s.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.State(ctx, m.ID, 9); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected state to be cascaded, got %v", err)
	}
	if err := s.Delete(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
