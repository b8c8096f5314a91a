package mongo

import (
	"context"
	"fmt"

	"github.com/rbaliyan/msgbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MailboxCounts returns every counter for viewer with one $group aggregation
// over the viewer's state rows joined to their messages.
func (s *Store) MailboxCounts(ctx context.Context, viewer store.UserID) (*store.Counts, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !viewer.Valid() {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	active := bson.M{"$eq": bson.A{"$status", string(store.StatusActive)}}
	isType := func(t store.MessageType) bson.M {
		return bson.M{"$eq": bson.A{"$m.type", string(t)}}
	}
	countIf := func(conds ...any) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$and": bson.A(conds)}, 1, 0}}}
	}

	pipeline := bson.A{
		bson.M{"$match": bson.M{"user_id": int64(viewer)}},
		bson.M{"$lookup": bson.M{
			"from":         s.opts.messagesCollection,
			"localField":   "message_id",
			"foreignField": "_id",
			"as":           "m",
		}},
		bson.M{"$unwind": "$m"},
		bson.M{"$group": bson.M{
			"_id":         nil,
			"inbox":       countIf(active, isType(store.TypeInbox)),
			"invitations": countIf(active, isType(store.TypeInvitation)),
			"alerts":      countIf(active, isType(store.TypeAlert)),
			"archived":    countIf(bson.M{"$eq": bson.A{"$status", string(store.StatusArchived)}}),
			"trashed":     countIf(bson.M{"$eq": bson.A{"$status", string(store.StatusTrashed)}}),
			"new":         countIf(active, bson.M{"$ne": bson.A{"$m.is_read", true}}),
			"groups": bson.M{"$addToSet": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{active, isType(store.TypeInbox)}},
				bson.M{"$ifNull": bson.A{"$m.conversation_group", nil}},
				nil,
			}}},
		}},
		bson.M{"$project": bson.M{
			"inbox": 1, "invitations": 1, "alerts": 1, "archived": 1, "trashed": 1, "new": 1,
			"conversations": bson.M{"$size": bson.M{"$setDifference": bson.A{"$groups", bson.A{nil, ""}}}},
		}},
	}

	cursor, err := s.states.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mailbox counts: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Inbox         int64 `bson:"inbox"`
		Invitations   int64 `bson:"invitations"`
		Alerts        int64 `bson:"alerts"`
		Archived      int64 `bson:"archived"`
		Trashed       int64 `bson:"trashed"`
		New           int64 `bson:"new"`
		Conversations int64 `bson:"conversations"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode mailbox counts: %w", err)
	}
	if len(results) == 0 {
		return &store.Counts{}, nil
	}
	r := results[0]
	return &store.Counts{
		Inbox:         r.Inbox,
		Invitations:   r.Invitations,
		Alerts:        r.Alerts,
		Archived:      r.Archived,
		Trashed:       r.Trashed,
		New:           r.New,
		Conversations: r.Conversations,
	}, nil
}
