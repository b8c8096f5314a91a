package msgbox

import (
	"context"
	"errors"
	"time"

	"github.com/rbaliyan/msgbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// CreateInbox creates a direct message from req.SenderID to req.RecipientID.
func (s *service) CreateInbox(ctx context.Context, req CreateRequest) (*Message, error) {
	return s.create(ctx, req, TypeInbox)
}

// CreateInvitation creates an invitation for req.RecipientID.
func (s *service) CreateInvitation(ctx context.Context, req CreateRequest) (*Message, error) {
	return s.create(ctx, req, TypeInvitation)
}

// CreateAlert creates a system alert for req.RecipientID.
// Alerts never have a sender.
func (s *service) CreateAlert(ctx context.Context, req CreateRequest) (*Message, error) {
	req.SenderID = NoUser
	return s.create(ctx, req, TypeAlert)
}

// create validates, persists, fans out state rows and triggers the
// notification exactly once.
func (s *service) create(ctx context.Context, req CreateRequest, typ MessageType) (msg *Message, err error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, end := s.otel.startSpan(ctx, "msgbox.Create",
		attribute.String("type", string(typ)),
		attribute.Int64("recipient_id", int64(req.RecipientID)),
	)
	start := time.Now()
	defer func() {
		end(err)
		s.otel.recordCreate(ctx, time.Since(start), typ, err)
	}()

	data := store.MessageData{
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Body:        req.Body,
		Type:        typ,
	}
	if err := ValidateMessageData(data, s.opts.limits()); err != nil {
		return nil, err
	}

	if err := s.plugins.beforeCreate(ctx, &data); err != nil {
		return nil, err
	}
	data = normalizeData(data, typ)
	if err := ValidateMessageData(data, s.opts.limits()); err != nil {
		return nil, err
	}

	viewers := stateViewers(data)
	if s.opts.atomicCreate {
		msg, err = s.createAtomic(ctx, data, viewers)
	} else {
		msg, err = s.createStepwise(ctx, data, viewers)
	}
	if err != nil {
		return nil, err
	}

	if pubErr := s.events.MessageCreated.Publish(ctx, newMessageCreatedEvent(msg)); pubErr != nil {
		s.opts.safeEventPublishFailure("MessageCreated", pubErr)
	}
	// Hooks see a copy so they cannot alter the returned message.
	if hookErr := s.plugins.afterCreate(ctx, msg.Clone()); hookErr != nil {
		s.logger.Warn("after-create hook failed", "message_id", msg.ID, "error", hookErr)
	}

	s.triggerNotification(ctx, msg)
	return msg, nil
}

// normalizeData pins the fields a hook may not change and derives the
// conversation group.
func normalizeData(data store.MessageData, typ MessageType) store.MessageData {
	data.Type = typ
	data.ConversationGroup = ""
	if typ == TypeAlert {
		data.SenderID = NoUser
	}
	if typ == TypeInbox {
		if group, ok := ConversationGroupFor(data.SenderID, data.RecipientID); ok {
			data.ConversationGroup = group
		}
	}
	return data
}

// stateViewers returns the users that get a state row, recipient first.
// The sender gets one unless absent, inviting, or writing to themself.
func stateViewers(data store.MessageData) []UserID {
	viewers := []UserID{data.RecipientID}
	if data.SenderID.Valid() && data.Type != TypeInvitation && data.SenderID != data.RecipientID {
		viewers = append(viewers, data.SenderID)
	}
	return viewers
}

// createAtomic writes the message and its state rows as one unit.
func (s *service) createAtomic(ctx context.Context, data store.MessageData, viewers []UserID) (*Message, error) {
	msg, _, err := s.store.CreateMessage(ctx, data, viewers)
	if err == nil {
		return msg, nil
	}
	var se *store.StateError
	if errors.As(err, &se) {
		s.logger.Error("state fan-out failed, message rolled back",
			"user_id", se.UserID,
			"type", data.Type,
			"error", se.Err,
		)
		return nil, &StateFanoutError{UserID: se.UserID, RolledBack: true, Err: se.Err}
	}
	return nil, wrapStoreError("create message", err)
}

// createStepwise inserts the message, then each state row in order.
// The first failure aborts and leaves the rows already written.
func (s *service) createStepwise(ctx context.Context, data store.MessageData, viewers []UserID) (*Message, error) {
	msg, err := s.store.InsertMessage(ctx, data)
	if err != nil {
		return nil, wrapStoreError("insert message", err)
	}
	for _, v := range viewers {
		if _, err := s.store.CreateState(ctx, msg.ID, v); err != nil {
			s.logger.Error("state fan-out failed, message left with incomplete states",
				"message_id", msg.ID,
				"user_id", v,
				"error", err,
			)
			return nil, &StateFanoutError{MessageID: msg.ID, UserID: v, Err: err}
		}
	}
	return msg, nil
}
