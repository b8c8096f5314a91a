package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/msgbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc messageDoc
	if err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return doc.toMessage(), nil
}

// Find returns messages visible to q.Viewer matching q, newest first.
func (s *Store) Find(ctx context.Context, q store.Query, opts store.ListOptions) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	pipeline := s.visiblePipeline(q)
	pipeline = append(pipeline, bson.M{"$sort": bson.D{
		bson.E{Key: "created_at", Value: -1},
		bson.E{Key: "_id", Value: -1},
	}})
	pipeline = appendPage(pipeline, opts)

	return s.aggregateMessages(ctx, pipeline)
}

// Count returns the number of messages matching q.
func (s *Store) Count(ctx context.Context, q store.Query) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	pipeline := append(s.visiblePipeline(q), bson.M{"$count": "n"})
	return s.aggregateCount(ctx, pipeline)
}

// Conversations returns the latest active inbox message per group for viewer.
//
// Step one groups the visible set by conversation_group keeping max(created_at);
// step two keeps the rows carrying that time, picks the greatest _id, and
// joins back to messages for the full document.
func (s *Store) Conversations(ctx context.Context, viewer store.UserID, opts store.ListOptions) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	q := store.ConversationQuery(viewer)
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	pipeline := s.visiblePipeline(q)
	pipeline = append(pipeline,
		bson.M{"$match": bson.M{"conversation_group": bson.M{"$exists": true, "$ne": ""}}},
		bson.M{"$group": bson.M{
			"_id":    "$conversation_group",
			"latest": bson.M{"$max": "$created_at"},
			"rows":   bson.M{"$push": bson.M{"id": "$_id", "created_at": "$created_at"}},
		}},
		bson.M{"$project": bson.M{
			"picked": bson.M{"$max": bson.M{"$map": bson.M{
				"input": bson.M{"$filter": bson.M{
					"input": "$rows",
					"cond":  bson.M{"$eq": bson.A{"$$this.created_at", "$latest"}},
				}},
				"in": "$$this.id",
			}}},
		}},
		bson.M{"$lookup": bson.M{
			"from":         s.opts.messagesCollection,
			"localField":   "picked",
			"foreignField": "_id",
			"as":           "m",
		}},
		bson.M{"$unwind": "$m"},
		bson.M{"$replaceRoot": bson.M{"newRoot": "$m"}},
		bson.M{"$sort": bson.D{
			bson.E{Key: "conversation_group", Value: 1},
			bson.E{Key: "created_at", Value: -1},
		}},
	)
	pipeline = appendPage(pipeline, opts)

	return s.aggregateMessages(ctx, pipeline)
}

// CountConversations returns the number of distinct groups visible to viewer.
func (s *Store) CountConversations(ctx context.Context, viewer store.UserID) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	q := store.ConversationQuery(viewer)
	if err := q.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	pipeline := append(s.visiblePipeline(q),
		bson.M{"$match": bson.M{"conversation_group": bson.M{"$exists": true, "$ne": ""}}},
		bson.M{"$group": bson.M{"_id": "$conversation_group"}},
		bson.M{"$count": "n"},
	)
	return s.aggregateCount(ctx, pipeline)
}

// visiblePipeline starts from the viewer's state rows, joins their messages,
// and applies the message-level filters of q. The output documents are messages.
func (s *Store) visiblePipeline(q store.Query) bson.A {
	stateMatch := bson.M{"user_id": int64(q.Viewer)}
	if q.Status != "" {
		stateMatch["status"] = string(q.Status)
	}

	msgMatch := bson.M{}
	if q.Type != "" {
		msgMatch["type"] = string(q.Type)
	}
	if q.ConversationGroup != "" {
		msgMatch["conversation_group"] = q.ConversationGroup
	}
	if q.UnreadOnly {
		msgMatch["is_read"] = false
	}

	pipeline := bson.A{
		bson.M{"$match": stateMatch},
		bson.M{"$lookup": bson.M{
			"from":         s.opts.messagesCollection,
			"localField":   "message_id",
			"foreignField": "_id",
			"as":           "m",
		}},
		bson.M{"$unwind": "$m"},
		bson.M{"$replaceRoot": bson.M{"newRoot": "$m"}},
	}
	if len(msgMatch) > 0 {
		pipeline = append(pipeline, bson.M{"$match": msgMatch})
	}
	return pipeline
}

func appendPage(pipeline bson.A, opts store.ListOptions) bson.A {
	if opts.Offset > 0 {
		pipeline = append(pipeline, bson.M{"$skip": int64(opts.Offset)})
	}
	if opts.Bounded() {
		pipeline = append(pipeline, bson.M{"$limit": int64(opts.Limit)})
	}
	return pipeline
}

func (s *Store) aggregateMessages(ctx context.Context, pipeline bson.A) ([]*store.Message, error) {
	cursor, err := s.states.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return toMessages(docs), nil
}

func (s *Store) aggregateCount(ctx context.Context, pipeline bson.A) (int64, error) {
	cursor, err := s.states.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate count: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		N int64 `bson:"n"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].N, nil
}
