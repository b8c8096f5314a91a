package msgbox

import (
	"context"
	"time"

	"github.com/rbaliyan/msgbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Archive moves the message to the owner's archive.
// Only the owner's view changes.
func (m *userMailbox) Archive(ctx context.Context, messageID string) error {
	return m.setStatus(ctx, messageID, StatusArchived)
}

// Trash moves the message to the owner's trash.
func (m *userMailbox) Trash(ctx context.Context, messageID string) error {
	return m.setStatus(ctx, messageID, StatusTrashed)
}

// Restore makes an archived or trashed message active again.
func (m *userMailbox) Restore(ctx context.Context, messageID string) error {
	return m.setStatus(ctx, messageID, StatusActive)
}

// MarkRead sets the read flag. The flag lives on the message, so both
// participants see the change.
func (m *userMailbox) MarkRead(ctx context.Context, messageID string, read bool) (err error) {
	if err := m.checkAccess(); err != nil {
		return err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.MarkRead",
		attribute.String("message_id", messageID),
		attribute.Bool("read", read),
	)
	start := time.Now()
	defer func() {
		end(err)
		m.service.otel.recordUpdate(ctx, time.Since(start), "mark_read", err)
	}()

	if _, err := m.service.store.State(ctx, messageID, m.userID); err != nil {
		return wrapStoreError("mark read", err)
	}
	if err := m.service.store.MarkRead(ctx, messageID, read); err != nil {
		return wrapStoreError("mark read", err)
	}
	return nil
}

// setStatus moves the owner's state row. Transitions always pass through
// active: archived and trashed rows must be restored first.
func (m *userMailbox) setStatus(ctx context.Context, messageID string, to Status) (err error) {
	if err := m.checkAccess(); err != nil {
		return err
	}
	ctx, end := m.service.otel.startSpan(ctx, "msgbox.SetStatus",
		attribute.String("message_id", messageID),
		attribute.String("status", string(to)),
	)
	start := time.Now()
	defer func() {
		end(err)
		m.service.otel.recordUpdate(ctx, time.Since(start), "status_"+string(to), err)
	}()

	st, err := m.service.store.State(ctx, messageID, m.userID)
	if err != nil {
		return wrapStoreError("set status", err)
	}
	if st.Status == to {
		return nil
	}
	if !allowedTransition(st.Status, to) {
		return &ValidationError{Field: "status", Message: "cannot move from " + string(st.Status) + " to " + string(to)}
	}
	if err := m.service.store.SetStatus(ctx, messageID, m.userID, to); err != nil {
		return wrapStoreError("set status", err)
	}

	if pubErr := m.service.events.MessageStatusChanged.Publish(ctx, MessageStatusChangedEvent{
		MessageID: messageID,
		UserID:    int64(m.userID),
		From:      string(st.Status),
		To:        string(to),
		ChangedAt: time.Now().UTC(),
	}); pubErr != nil {
		m.service.opts.safeEventPublishFailure("MessageStatusChanged", pubErr)
	}
	return nil
}

// allowedTransition reports whether a state row may move from one status
// to another. Valid moves are active to archived or trashed, and back.
func allowedTransition(from, to store.Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	return from == StatusActive || to == StatusActive
}

// SendInbox sends a direct message from the owner to recipient.
func (m *userMailbox) SendInbox(ctx context.Context, recipient UserID, body string) (*Message, error) {
	if !m.userID.Valid() {
		return nil, ErrInvalidUserID
	}
	return m.service.CreateInbox(ctx, CreateRequest{SenderID: m.userID, RecipientID: recipient, Body: body})
}

// Invite sends an invitation from the owner to recipient.
func (m *userMailbox) Invite(ctx context.Context, recipient UserID, body string) (*Message, error) {
	if !m.userID.Valid() {
		return nil, ErrInvalidUserID
	}
	return m.service.CreateInvitation(ctx, CreateRequest{SenderID: m.userID, RecipientID: recipient, Body: body})
}
