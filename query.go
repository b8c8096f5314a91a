package msgbox

import (
	"context"
	"time"

	"github.com/rbaliyan/msgbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Get returns a message visible to this mailbox.
// Messages without a state row for the owner are reported as not found.
func (m *userMailbox) Get(ctx context.Context, messageID string) (msg *Message, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.Get",
		attribute.String("message_id", messageID),
		attribute.Int64("user_id", int64(m.userID)),
	)
	defer func() { end(err) }()

	if _, err := m.service.store.State(ctx, messageID, m.userID); err != nil {
		return nil, wrapStoreError("get message", err)
	}
	msg, err = m.service.store.Get(ctx, messageID)
	if err != nil {
		return nil, wrapStoreError("get message", err)
	}
	return msg, nil
}

// Conversation returns the active inbox messages between the owner and
// opponent, newest first.
func (m *userMailbox) Conversation(ctx context.Context, opponent UserID, opts ListOptions) ([]*Message, error) {
	if !opponent.Valid() {
		return nil, &ValidationError{Field: "opponent", Message: "is required"}
	}
	q := store.ConversationQuery(m.userID)
	q.ConversationGroup = GroupKey(m.userID, opponent)
	return m.find(ctx, "conversation", q, opts)
}

// Conversations returns the latest active inbox message per conversation.
func (m *userMailbox) Conversations(ctx context.Context, opts ListOptions) (msgs []*Message, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.Conversations",
		attribute.Int64("user_id", int64(m.userID)),
	)
	start := time.Now()
	defer func() {
		end(err)
		m.service.otel.recordList(ctx, time.Since(start), "conversations", len(msgs), err)
	}()

	msgs, err = m.service.store.Conversations(ctx, m.userID, m.service.opts.capList(opts))
	if err != nil {
		return nil, wrapStoreError("list conversations", err)
	}
	return msgs, nil
}

// ConversationsCount returns the number of distinct conversations.
func (m *userMailbox) ConversationsCount(ctx context.Context) (int64, error) {
	return m.count(ctx, "conversations", func(ctx context.Context) (int64, error) {
		return m.service.store.CountConversations(ctx, m.userID)
	})
}

// Invitations returns active invitations, newest first.
func (m *userMailbox) Invitations(ctx context.Context, opts ListOptions) ([]*Message, error) {
	return m.find(ctx, "invitations", store.Query{Viewer: m.userID, Status: StatusActive, Type: TypeInvitation}, opts)
}

// Alerts returns active alerts, newest first.
func (m *userMailbox) Alerts(ctx context.Context, opts ListOptions) ([]*Message, error) {
	return m.find(ctx, "alerts", store.Query{Viewer: m.userID, Status: StatusActive, Type: TypeAlert}, opts)
}

func (m *userMailbox) TrashedCount(ctx context.Context) (int64, error) {
	return m.countQuery(ctx, "trashed", store.Query{Viewer: m.userID, Status: StatusTrashed})
}

func (m *userMailbox) ArchivedCount(ctx context.Context) (int64, error) {
	return m.countQuery(ctx, "archived", store.Query{Viewer: m.userID, Status: StatusArchived})
}

func (m *userMailbox) InboxCount(ctx context.Context) (int64, error) {
	return m.countQuery(ctx, "inbox", store.Query{Viewer: m.userID, Status: StatusActive, Type: TypeInbox})
}

func (m *userMailbox) InvitationsCount(ctx context.Context) (int64, error) {
	return m.countQuery(ctx, "invitations", store.Query{Viewer: m.userID, Status: StatusActive, Type: TypeInvitation})
}

func (m *userMailbox) AlertsCount(ctx context.Context) (int64, error) {
	return m.countQuery(ctx, "alerts", store.Query{Viewer: m.userID, Status: StatusActive, Type: TypeAlert})
}

func (m *userMailbox) NewCount(ctx context.Context) (int64, error) {
	return m.countQuery(ctx, "new", store.Query{Viewer: m.userID, Status: StatusActive, UnreadOnly: true})
}

// Counts returns every counter in one round trip.
func (m *userMailbox) Counts(ctx context.Context) (counts *Counts, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.Counts",
		attribute.Int64("user_id", int64(m.userID)),
	)
	start := time.Now()
	defer func() {
		end(err)
		m.service.otel.recordCount(ctx, time.Since(start), "all", err)
	}()

	counts, err = m.service.store.MailboxCounts(ctx, m.userID)
	if err != nil {
		return nil, wrapStoreError("mailbox counts", err)
	}
	return counts, nil
}

// find runs a viewer-scoped list query.
func (m *userMailbox) find(ctx context.Context, name string, q store.Query, opts ListOptions) (msgs []*Message, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.List",
		attribute.String("query", name),
		attribute.Int64("user_id", int64(m.userID)),
	)
	start := time.Now()
	defer func() {
		end(err)
		m.service.otel.recordList(ctx, time.Since(start), name, len(msgs), err)
	}()

	msgs, err = m.service.store.Find(ctx, q, m.service.opts.capList(opts))
	if err != nil {
		return nil, wrapStoreError("list "+name, err)
	}
	return msgs, nil
}

func (m *userMailbox) countQuery(ctx context.Context, name string, q store.Query) (int64, error) {
	return m.count(ctx, name, func(ctx context.Context) (int64, error) {
		return m.service.store.Count(ctx, q)
	})
}

// count runs a single aggregate counter.
func (m *userMailbox) count(ctx context.Context, name string, fn func(context.Context) (int64, error)) (n int64, err error) {
	if err := m.checkAccess(); err != nil {
		return 0, err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.Count",
		attribute.String("query", name),
		attribute.Int64("user_id", int64(m.userID)),
	)
	start := time.Now()
	defer func() {
		end(err)
		m.service.otel.recordCount(ctx, time.Since(start), name, err)
	}()

	n, err = fn(ctx)
	if err != nil {
		return 0, wrapStoreError("count "+name, err)
	}
	return n, nil
}
