package msgbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rbaliyan/msgbox/retry"
	"github.com/rbaliyan/msgbox/store"
	"github.com/rbaliyan/msgbox/store/memory"
)

// setupService creates a connected service over a fresh memory store.
// Notifications run inline so tests can inspect them right after a create.
func setupService(t *testing.T, opts ...Option) (Service, *memory.Store) {
	t.Helper()
	mem := memory.New()
	return setupServiceWithStore(t, mem, opts...), mem
}

func setupServiceWithStore(t *testing.T, s store.Store, opts ...Option) Service {
	t.Helper()
	opts = append([]Option{
		WithStore(s),
		WithNotificationRetry(retry.NoRetry()),
		WithAsyncNotifications(false),
	}, opts...)
	svc, err := NewService(opts...)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc
}

func newMemory() *memory.Store {
	return memory.New()
}

// send creates an inbox message and fails the test on error.
func send(t *testing.T, svc Service, from, to UserID, body string) *Message {
	t.Helper()
	msg, err := svc.CreateInbox(context.Background(), CreateRequest{SenderID: from, RecipientID: to, Body: body})
	if err != nil {
		t.Fatalf("create inbox %d->%d: %v", from, to, err)
	}
	return msg
}

var errInjected = errors.New("injected failure")

// failingStore rejects the state row of failUser.
type failingStore struct {
	*memory.Store
	failUser UserID
}

func (f *failingStore) CreateMessage(ctx context.Context, data store.MessageData, viewers []store.UserID) (*store.Message, []*store.MessageState, error) {
	for _, v := range viewers {
		if v == f.failUser {
			return nil, nil, &store.StateError{UserID: v, Err: errInjected}
		}
	}
	return f.Store.CreateMessage(ctx, data, viewers)
}

func (f *failingStore) CreateState(ctx context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if user == f.failUser {
		return nil, errInjected
	}
	return f.Store.CreateState(ctx, messageID, user)
}

// notification is one recorded notifier call.
type notification struct {
	messageID string
	kind      NotificationKind
}

// recordingNotifier records notifier calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, msg *Message, kind NotificationKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notification{messageID: msg.ID, kind: kind})
	return r.err
}

func (r *recordingNotifier) recorded() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.calls...)
}
