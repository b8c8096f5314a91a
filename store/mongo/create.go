package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rbaliyan/msgbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// CreateMessage inserts the message and its state rows in one transaction.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData, viewers []store.UserID) (*store.Message, []*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	msgDoc := newMessageDoc(uuid.New().String(), data, s.now())
	stateDocs := make([]*stateDoc, len(viewers))
	for i, v := range viewers {
		stateDocs[i] = &stateDoc{
			ID:        uuid.New().String(),
			MessageID: msgDoc.ID,
			UserID:    int64(v),
			Status:    string(store.StatusActive),
			CreatedAt: s.now(),
		}
	}

	write := func(ctx context.Context) error {
		if _, err := s.messages.InsertOne(ctx, msgDoc); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		for i, doc := range stateDocs {
			if !viewers[i].Valid() {
				return &store.StateError{UserID: viewers[i], Err: store.ErrInvalidID}
			}
			if _, err := s.states.InsertOne(ctx, doc); err != nil {
				return &store.StateError{UserID: viewers[i], Err: mapWriteErr(err)}
			}
		}
		return nil
	}
	undo := func(ctx context.Context) {
		if _, err := s.states.DeleteMany(ctx, bson.M{"message_id": msgDoc.ID}); err != nil {
			s.logger.Error("failed to remove states of aborted message", "message_id", msgDoc.ID, "error", err)
		}
		if _, err := s.messages.DeleteOne(ctx, bson.M{"_id": msgDoc.ID}); err != nil {
			s.logger.Error("failed to remove aborted message", "message_id", msgDoc.ID, "error", err)
		}
	}

	if err := s.runAtomic(ctx, write, undo); err != nil {
		return nil, nil, err
	}

	states := make([]*store.MessageState, len(stateDocs))
	for i, d := range stateDocs {
		states[i] = d.toState()
	}
	return msgDoc.toMessage(), states, nil
}

// InsertMessage inserts only the message document.
func (s *Store) InsertMessage(ctx context.Context, data store.MessageData) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	doc := newMessageDoc(uuid.New().String(), data, s.now())
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return doc.toMessage(), nil
}

// CreateState inserts an active state row for user.
func (s *Store) CreateState(ctx context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" || !user.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	n, err := s.messages.CountDocuments(ctx, bson.M{"_id": messageID})
	if err != nil {
		return nil, fmt.Errorf("check message: %w", err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}

	doc := &stateDoc{
		ID:        uuid.New().String(),
		MessageID: messageID,
		UserID:    int64(user),
		Status:    string(store.StatusActive),
		CreatedAt: s.now(),
	}
	if _, err := s.states.InsertOne(ctx, doc); err != nil {
		return nil, mapWriteErr(err)
	}
	return doc.toState(), nil
}

func mapWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateEntry
	}
	return err
}
