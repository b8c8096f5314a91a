package msgbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names. Each service prefixes them with its bus name.
const (
	EventNameMessageCreated        = "msgbox.message.created"
	EventNameMessageStatusChanged  = "msgbox.message.status_changed"
	EventNameMessageDeleted        = "msgbox.message.deleted"
	EventNameNotificationRequested = "msgbox.notification.requested"
)

// MessageCreatedEvent is published after a message and its state rows are persisted.
type MessageCreatedEvent struct {
	MessageID         string    `json:"message_id"`
	Type              string    `json:"type"`
	SenderID          int64     `json:"sender_id,omitempty"`
	RecipientID       int64     `json:"recipient_id"`
	ConversationGroup string    `json:"conversation_group,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// MessageStatusChangedEvent is published when a viewer archives, trashes or
// restores a message.
type MessageStatusChangedEvent struct {
	MessageID string    `json:"message_id"`
	UserID    int64     `json:"user_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// MessageDeletedEvent is published when a message and its states are removed.
type MessageDeletedEvent struct {
	MessageID string    `json:"message_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NotificationRequestedEvent is published by the default notifier.
// An external mailer consumes it to deliver the notification.
type NotificationRequestedEvent struct {
	MessageID   string    `json:"message_id"`
	Kind        string    `json:"kind"`
	RecipientID int64     `json:"recipient_id"`
	SenderID    int64     `json:"sender_id,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// ServiceEvents provides access to per-service event instances.
//
// Subscribe to events:
//
//	svc.Events().MessageCreated.Subscribe(ctx, handler)
//	svc.Events().NotificationRequested.Subscribe(ctx, handler)
type ServiceEvents struct {
	MessageCreated        event.Event[MessageCreatedEvent]
	MessageStatusChanged  event.Event[MessageStatusChangedEvent]
	MessageDeleted        event.Event[MessageDeletedEvent]
	NotificationRequested event.Event[NotificationRequestedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		MessageCreated:        event.New[MessageCreatedEvent](namePrefix + "." + EventNameMessageCreated),
		MessageStatusChanged:  event.New[MessageStatusChangedEvent](namePrefix + "." + EventNameMessageStatusChanged),
		MessageDeleted:        event.New[MessageDeletedEvent](namePrefix + "." + EventNameMessageDeleted),
		NotificationRequested: event.New[NotificationRequestedEvent](namePrefix + "." + EventNameNotificationRequested),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.MessageCreated); err != nil {
		return fmt.Errorf("register MessageCreated: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageStatusChanged); err != nil {
		return fmt.Errorf("register MessageStatusChanged: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageDeleted); err != nil {
		return fmt.Errorf("register MessageDeleted: %w", err)
	}
	if err := event.Register(ctx, bus, events.NotificationRequested); err != nil {
		return fmt.Errorf("register NotificationRequested: %w", err)
	}
	return nil
}

func newMessageCreatedEvent(msg *Message) MessageCreatedEvent {
	return MessageCreatedEvent{
		MessageID:         msg.ID,
		Type:              string(msg.Type),
		SenderID:          int64(msg.SenderID),
		RecipientID:       int64(msg.RecipientID),
		ConversationGroup: msg.ConversationGroup,
		CreatedAt:         msg.CreatedAt,
	}
}
