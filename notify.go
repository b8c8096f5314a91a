package msgbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/msgbox/retry"
)

// NotificationKind selects the notification template.
type NotificationKind string

// Notification kinds.
const (
	// NotifyInbox is used for direct inbox messages.
	NotifyInbox NotificationKind = "inbox"
	// NotifyOther is used for invitations and alerts.
	NotifyOther NotificationKind = "other"
)

// KindFor returns the notification kind of a message type.
func KindFor(t MessageType) NotificationKind {
	if t == TypeInbox {
		return NotifyInbox
	}
	return NotifyOther
}

// Notifier delivers "you have a new message" notifications.
// It decides how to notify; the service only decides that it must.
type Notifier interface {
	Notify(ctx context.Context, msg *Message, kind NotificationKind) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg *Message, kind NotificationKind) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, msg *Message, kind NotificationKind) error {
	return f(ctx, msg, kind)
}

// eventNotifier publishes NotificationRequested on the service bus.
type eventNotifier struct {
	svc *service
}

func (n eventNotifier) Notify(ctx context.Context, msg *Message, kind NotificationKind) error {
	events := n.svc.events
	if events == nil {
		return ErrNotConnected
	}
	return events.NotificationRequested.Publish(ctx, NotificationRequestedEvent{
		MessageID:   msg.ID,
		Kind:        string(kind),
		RecipientID: int64(msg.RecipientID),
		SenderID:    int64(msg.SenderID),
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt,
	})
}

// triggerNotification invokes the notifier once for a persisted message.
// Failures never reach the caller.
//
// Every call holds a notification slot while it runs, and the service must
// still be connected once the slot is held. Close takes every slot before
// shutting the bus, so no call starts against a closed service.
func (s *service) triggerNotification(ctx context.Context, msg *Message) {
	// Only persisted messages are announced.
	if msg == nil || msg.ID == "" || msg.CreatedAt.IsZero() {
		s.logger.Warn("skipping notification for unpersisted message")
		return
	}
	kind := KindFor(msg.Type)
	snapshot := msg.Clone()

	if !s.opts.asyncNotifications {
		if err := s.notifySem.Acquire(ctx, 1); err != nil {
			s.dropNotification(ctx, snapshot, kind, err)
			return
		}
		defer s.notifySem.Release(1)
		if !s.IsConnected() {
			s.dropNotification(ctx, snapshot, kind, ErrNotConnected)
			return
		}
		s.notify(ctx, snapshot, kind)
		return
	}

	if !s.notifySem.TryAcquire(1) {
		s.dropNotification(ctx, snapshot, kind, ErrNotificationQueueFull)
		return
	}
	if !s.IsConnected() {
		s.notifySem.Release(1)
		s.dropNotification(ctx, snapshot, kind, ErrNotConnected)
		return
	}
	// The caller's context ends with the request; background work keeps only its values.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer s.notifySem.Release(1)
		s.notify(bg, snapshot, kind)
	}()
}

// dropNotification reports a notification that was never attempted.
func (s *service) dropNotification(ctx context.Context, msg *Message, kind NotificationKind, cause error) {
	s.logger.Warn("notification dropped",
		"message_id", msg.ID,
		"kind", kind,
		"error", cause,
	)
	s.otel.recordNotifyDropped(ctx, kind)
	s.opts.safeNotificationFailure(&NotificationError{MessageID: msg.ID, Kind: kind, Err: cause})
}

// notify runs the notifier with timeout, retries and panic recovery.
func (s *service) notify(ctx context.Context, msg *Message, kind NotificationKind) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.notificationTimeout)
	defer cancel()

	start := time.Now()
	err := retry.Do(ctx, s.opts.notificationRetry, func(ctx context.Context) error {
		return s.callNotifier(ctx, msg, kind)
	})
	s.otel.recordNotify(ctx, time.Since(start), kind, err)
	if err == nil {
		return
	}

	nerr := &NotificationError{MessageID: msg.ID, Kind: kind, Err: err}
	s.logger.Error("notification failed",
		"message_id", msg.ID,
		"kind", kind,
		"error", err,
	)
	s.opts.safeNotificationFailure(nerr)
}

func (s *service) callNotifier(ctx context.Context, msg *Message, kind NotificationKind) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = retry.MarkNotRetryable(fmt.Errorf("notifier panic: %v", r))
		}
	}()
	return s.notifier.Notify(ctx, msg, kind)
}
