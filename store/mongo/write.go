package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/msgbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MarkRead sets the read flag on a message.
func (s *Store) MarkRead(ctx context.Context, id string, read bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.messages.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_read": read}})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a message and its state rows in one transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	return s.runAtomic(ctx, func(ctx context.Context) error {
		result, err := s.messages.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		if result.DeletedCount == 0 {
			return store.ErrNotFound
		}
		if _, err := s.states.DeleteMany(ctx, bson.M{"message_id": id}); err != nil {
			return fmt.Errorf("delete states: %w", err)
		}
		return nil
	}, nil)
}

// States returns the state rows of a message in creation order.
func (s *Store) States(ctx context.Context, messageID string) ([]*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.Get(ctx, messageID); err != nil {
		return nil, err
	}

	findOpts := mongoopts.Find().SetSort(bson.D{
		bson.E{Key: "created_at", Value: 1},
		bson.E{Key: "_id", Value: 1},
	})
	cursor, err := s.states.Find(ctx, bson.M{"message_id": messageID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []stateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode states: %w", err)
	}
	out := make([]*store.MessageState, len(docs))
	for i := range docs {
		out[i] = docs[i].toState()
	}
	return out, nil
}

// State returns the state row of user for a message.
func (s *Store) State(ctx context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" || !user.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc stateDoc
	err := s.states.FindOne(ctx, bson.M{"message_id": messageID, "user_id": int64(user)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find state: %w", err)
	}
	return doc.toState(), nil
}

// SetStatus changes the status of the user's state row.
func (s *Store) SetStatus(ctx context.Context, messageID string, user store.UserID, status store.Status) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" || !user.Valid() {
		return store.ErrInvalidID
	}
	if !status.IsValid() {
		return store.ErrInvalidStatus
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.states.UpdateOne(ctx,
		bson.M{"message_id": messageID, "user_id": int64(user)},
		bson.M{"$set": bson.M{"status": string(status)}},
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
