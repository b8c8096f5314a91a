// Package cached provides a redis-backed caching wrapper for msgbox stores.
//
// Only the per-viewer counters are cached. They are encoded with msgpack and
// invalidated for every affected viewer on writes made through this wrapper.
// Writes that bypass the wrapper become visible when the TTL expires.
//
// Each viewer also has a generation key that every invalidation increments.
// A miss records the generation before querying the backend and stores its
// result only if the generation is unchanged, so a write that lands during
// the query is never hidden behind the older counters.
package cached

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbaliyan/msgbox/store"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// Store wraps a store.Store with redis-cached counters.
type Store struct {
	store.Store

	client redis.UniversalClient
	opts   *options
	logger *slog.Logger
	group  singleflight.Group
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a cached store wrapping backend.
func New(backend store.Store, client redis.UniversalClient, opts ...Option) *Store {
	o := &options{
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Store{
		Store:  backend,
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

func (s *Store) countsKey(viewer store.UserID) string {
	return fmt.Sprintf("%s:counts:%d", s.opts.prefix, viewer)
}

// genKey holds the invalidation generation of viewer. It has no expiry.
func (s *Store) genKey(viewer store.UserID) string {
	return fmt.Sprintf("%s:counts:gen:%d", s.opts.prefix, viewer)
}

// fillScript sets KEYS[2] to ARGV[2] with a PX of ARGV[3] when the
// generation in KEYS[1] still equals ARGV[1]. A missing generation is "0".
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1])
if not gen then gen = "0" end
if gen ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// MailboxCounts returns cached counters, loading them from the backend on a miss.
// Concurrent misses for one viewer share a single backend query.
// Redis failures degrade to the backend.
func (s *Store) MailboxCounts(ctx context.Context, viewer store.UserID) (*store.Counts, error) {
	if !viewer.Valid() {
		return nil, store.ErrInvalidID
	}
	key := s.countsKey(viewer)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c store.Counts
		if err := msgpack.Unmarshal(raw, &c); err == nil {
			return &c, nil
		}
		s.logger.Warn("discarding undecodable cached counts", "key", key)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("counts cache read failed", "key", key, "error", err)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		gen, genErr := s.generation(ctx, viewer)
		c, err := s.Store.MailboxCounts(ctx, viewer)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			s.fill(ctx, viewer, gen, c)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Counts).Clone(), nil
}

// CountConversations is served from the cached counters.
func (s *Store) CountConversations(ctx context.Context, viewer store.UserID) (int64, error) {
	c, err := s.MailboxCounts(ctx, viewer)
	if err != nil {
		return 0, err
	}
	return c.Conversations, nil
}

// generation returns the current invalidation generation of viewer.
func (s *Store) generation(ctx context.Context, viewer store.UserID) (string, error) {
	gen, err := s.client.Get(ctx, s.genKey(viewer)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", nil
	case err != nil:
		s.logger.Warn("counts generation read failed, result not cached", "viewer", viewer, "error", err)
		return "", err
	}
	return gen, nil
}

// fill caches c unless viewer was invalidated after gen was read.
func (s *Store) fill(ctx context.Context, viewer store.UserID, gen string, c *store.Counts) {
	key := s.countsKey(viewer)
	raw, err := msgpack.Marshal(c)
	if err != nil {
		s.logger.Warn("encode counts failed", "key", key, "error", err)
		return
	}
	stored, err := fillScript.Run(ctx, s.client,
		[]string{s.genKey(viewer), key},
		gen, raw, s.opts.ttl.Milliseconds(),
	).Int()
	if err != nil {
		s.logger.Warn("counts cache write failed", "key", key, "error", err)
		return
	}
	if stored == 0 {
		s.logger.Debug("counts changed during load, not cached", "key", key)
	}
}

// Invalidate drops cached counters for the given viewers and advances their
// generation so that loads already in flight do not store stale counters.
func (s *Store) Invalidate(ctx context.Context, viewers ...store.UserID) {
	var valid []store.UserID
	for _, v := range viewers {
		if v.Valid() {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, v := range valid {
			pipe.Incr(ctx, s.genKey(v))
			pipe.Del(ctx, s.countsKey(v))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("counts cache invalidation failed", "viewers", valid, "error", err)
	}
}

// viewersOf returns the users holding a state row for messageID.
func (s *Store) viewersOf(ctx context.Context, messageID string) []store.UserID {
	states, err := s.Store.States(ctx, messageID)
	if err != nil {
		return nil
	}
	out := make([]store.UserID, len(states))
	for i, st := range states {
		out[i] = st.UserID
	}
	return out
}

// CreateMessage creates through the backend and invalidates every viewer.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData, viewers []store.UserID) (*store.Message, []*store.MessageState, error) {
	m, states, err := s.Store.CreateMessage(ctx, data, viewers)
	if err != nil {
		return nil, nil, err
	}
	s.Invalidate(ctx, viewers...)
	return m, states, nil
}

// CreateState creates through the backend and invalidates user.
func (s *Store) CreateState(ctx context.Context, messageID string, user store.UserID) (*store.MessageState, error) {
	st, err := s.Store.CreateState(ctx, messageID, user)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, user)
	return st, nil
}

// SetStatus updates through the backend and invalidates user.
func (s *Store) SetStatus(ctx context.Context, messageID string, user store.UserID, status store.Status) error {
	if err := s.Store.SetStatus(ctx, messageID, user, status); err != nil {
		return err
	}
	s.Invalidate(ctx, user)
	return nil
}

// MarkRead updates through the backend and invalidates every viewer of the message.
func (s *Store) MarkRead(ctx context.Context, id string, read bool) error {
	if err := s.Store.MarkRead(ctx, id, read); err != nil {
		return err
	}
	s.Invalidate(ctx, s.viewersOf(ctx, id)...)
	return nil
}

// Delete removes through the backend and invalidates every former viewer.
func (s *Store) Delete(ctx context.Context, id string) error {
	viewers := s.viewersOf(ctx, id)
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, viewers...)
	return nil
}
