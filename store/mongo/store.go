// Package mongo provides a MongoDB implementation of store.Store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/msgbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

const (
	stateDisconnected int32 = iota
	stateConnecting
	stateConnected
)

// Store implements store.Store using MongoDB.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	messages  *mongo.Collection
	states    *mongo.Collection
	opts      *options
	// connected is stateDisconnected, stateConnecting or stateConnected.
	connected int32
	logger    *slog.Logger

	clockMu  sync.Mutex
	lastTime time.Time
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the database, collections, and indexes.
// Concurrent calls are serialized: only one runs, the others get
// store.ErrAlreadyConnected. A failed Connect may be retried.
func (s *Store) Connect(ctx context.Context) (err error) {
	if !atomic.CompareAndSwapInt32(&s.connected, stateDisconnected, stateConnecting) {
		return store.ErrAlreadyConnected
	}
	defer func() {
		if err != nil {
			atomic.StoreInt32(&s.connected, stateDisconnected)
		}
	}()

	if s.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	s.messages = s.db.Collection(s.opts.messagesCollection)
	s.states = s.db.Collection(s.opts.statesCollection)

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&s.connected, stateConnected)
	s.logger.Info("connected to MongoDB", "database", s.opts.database,
		"messages", s.opts.messagesCollection, "states", s.opts.statesCollection)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	atomic.CompareAndSwapInt32(&s.connected, stateConnected, stateDisconnected)
	return nil
}

// ensureIndexes creates required indexes.
func (s *Store) ensureIndexes(ctx context.Context) error {
	stateIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				bson.E{Key: "message_id", Value: 1},
				bson.E{Key: "user_id", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
		{Keys: bson.D{
			bson.E{Key: "user_id", Value: 1},
			bson.E{Key: "status", Value: 1},
		}},
	}
	if _, err := s.states.Indexes().CreateMany(ctx, stateIndexes); err != nil {
		return fmt.Errorf("state indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			bson.E{Key: "type", Value: 1},
			bson.E{Key: "created_at", Value: -1},
		}},
		{
			Keys: bson.D{
				bson.E{Key: "conversation_group", Value: 1},
				bson.E{Key: "created_at", Value: -1},
			},
			Options: mongoopts.Index().SetSparse(true),
		},
	}
	if _, err := s.messages.Indexes().CreateMany(ctx, messageIndexes); err != nil {
		s.logger.Warn("failed to create message indexes", "error", err)
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) != stateConnected {
		return store.ErrNotConnected
	}
	return nil
}

// now returns a millisecond timestamp that increases strictly within this
// process. BSON dates carry millisecond precision.
func (s *Store) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := time.Now().UTC().Truncate(time.Millisecond)
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Millisecond)
	}
	s.lastTime = t
	return t
}

// runAtomic runs fn inside a transaction. Standalone servers do not support
// transactions; there fn runs directly and undo compensates on failure.
func (s *Store) runAtomic(ctx context.Context, fn func(ctx context.Context) error, undo func(ctx context.Context)) error {
	session, err := s.client.StartSession()
	if err != nil {
		return runCompensated(ctx, fn, undo)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx)
	})
	if isTransactionNotSupported(err) {
		s.logger.Debug("transactions not supported, using compensation")
		return runCompensated(ctx, fn, undo)
	}
	return err
}

func runCompensated(ctx context.Context, fn func(ctx context.Context) error, undo func(ctx context.Context)) error {
	if err := fn(ctx); err != nil {
		if undo != nil {
			undo(ctx)
		}
		return err
	}
	return nil
}

// isTransactionNotSupported checks if the error indicates transactions aren't supported.
func isTransactionNotSupported(err error) bool {
	if err == nil {
		return false
	}
	// 263: OperationNotSupportedInTransaction
	// 20: IllegalOperation, returned by standalone servers
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 263 || cmdErr.Code == 20
	}
	return false
}
