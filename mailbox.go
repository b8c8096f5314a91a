package msgbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/msgbox/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// MessageFactory creates messages. The message type is chosen by the method.
type MessageFactory interface {
	// CreateInbox creates a direct message. When both parties are known the
	// message joins their conversation.
	CreateInbox(ctx context.Context, req CreateRequest) (*Message, error)
	// CreateInvitation creates an invitation. Only the recipient gets a state row.
	CreateInvitation(ctx context.Context, req CreateRequest) (*Message, error)
	// CreateAlert creates a system alert. Any sender is dropped.
	CreateAlert(ctx context.Context, req CreateRequest) (*Message, error)
}

// Service manages the messaging system (server-side).
// It owns the store connection and creates per-user mailbox clients.
type Service interface {
	ServiceHealth
	MessageFactory

	// Connect establishes connections to storage backends.
	Connect(ctx context.Context) error
	// Close waits for in-flight notifications and closes all connections.
	Close(ctx context.Context) error
	// Client returns a mailbox client for the given user.
	Client(userID UserID) Mailbox
	// DeleteMessage removes a message and every state row that refers to it.
	DeleteMessage(ctx context.Context, messageID string) error
	// Events returns per-service event instances.
	Events() *ServiceEvents
}

// ConversationReader lists inbox conversations.
type ConversationReader interface {
	// Conversation returns the active inbox messages exchanged with opponent,
	// newest first.
	Conversation(ctx context.Context, opponent UserID, opts ListOptions) ([]*Message, error)
	// Conversations returns the latest active inbox message of every
	// conversation, ordered by group key then newest first.
	Conversations(ctx context.Context, opts ListOptions) ([]*Message, error)
	// ConversationsCount returns the number of distinct conversations.
	ConversationsCount(ctx context.Context) (int64, error)
}

// MessageLister lists non-conversation messages.
type MessageLister interface {
	Get(ctx context.Context, messageID string) (*Message, error)
	Invitations(ctx context.Context, opts ListOptions) ([]*Message, error)
	Alerts(ctx context.Context, opts ListOptions) ([]*Message, error)
}

// MailboxCounter provides mailbox counters. Each is one aggregate query.
type MailboxCounter interface {
	TrashedCount(ctx context.Context) (int64, error)
	ArchivedCount(ctx context.Context) (int64, error)
	InboxCount(ctx context.Context) (int64, error)
	InvitationsCount(ctx context.Context) (int64, error)
	AlertsCount(ctx context.Context) (int64, error)
	// NewCount counts active unread messages of any type.
	NewCount(ctx context.Context) (int64, error)
	// Counts returns every counter at once.
	Counts(ctx context.Context) (*Counts, error)
}

// MailboxMutator changes the viewer's view of a message.
type MailboxMutator interface {
	Archive(ctx context.Context, messageID string) error
	Trash(ctx context.Context, messageID string) error
	Restore(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, messageID string, read bool) error
}

// MessageSender sends messages as the mailbox owner.
type MessageSender interface {
	SendInbox(ctx context.Context, recipient UserID, body string) (*Message, error)
	Invite(ctx context.Context, recipient UserID, body string) (*Message, error)
}

// Mailbox is the view of the messaging system for one user.
type Mailbox interface {
	UserID() UserID
	// Opponent returns the other participant of msg from this mailbox's side.
	Opponent(msg *Message) (UserID, bool)

	ConversationReader
	MessageLister
	MailboxCounter
	MailboxMutator
	MessageSender
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store     store.Store
	logger    *slog.Logger
	opts      *options
	state     int32
	plugins   *pluginRegistry
	otel      *otelInstrumentation
	notifier  Notifier
	notifySem *semaphore.Weighted
	eventBus  *event.Bus
	events    *ServiceEvents
}

// NewService creates a new messaging service.
// Call Connect() to establish connections to backends.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	s := &service{
		store:     o.store,
		logger:    o.logger,
		opts:      o,
		plugins:   plugins,
		otel:      otelInstr,
		notifier:  o.notifier,
		notifySem: semaphore.NewWeighted(int64(o.maxConcurrentNotifications)),
	}
	if s.notifier == nil {
		s.notifier = eventNotifier{svc: s}
	}
	return s, nil
}

// Events returns per-service event instances. Nil before Connect.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to storage backends.
func (s *service) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil && !errors.Is(err, store.ErrAlreadyConnected) {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	if err := s.plugins.initAll(ctx); err != nil {
		s.eventBus.Close(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("msgbox service connected", "atomic_create", s.opts.atomicCreate)
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus creates this service's bus and registers its events.
func (s *service) initEventBus(ctx context.Context) error {
	busName := fmt.Sprintf("%s-%d", s.opts.serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}
	return nil
}

// Close waits for in-flight notifications and closes connections.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// No new work starts once the state is disconnected. Acquiring every
	// slot waits for running notifications.
	slots := int64(s.opts.maxConcurrentNotifications)
	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer cancel()
	if err := s.notifySem.Acquire(shutdownCtx, slots); err != nil {
		s.logger.Warn("timeout waiting for in-flight notifications, proceeding with shutdown",
			"error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.notifySem.Release(slots)
	}

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if s.eventBus != nil {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.logger.Info("msgbox service closed")
	return errors.Join(errs...)
}

// Client returns a mailbox client for the given user.
func (s *service) Client(userID UserID) Mailbox {
	return &userMailbox{
		userID:  userID,
		service: s,
	}
}

// checkConnected returns ErrNotConnected unless the service is ready.
func (s *service) checkConnected() error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// DeleteMessage removes a message and its state rows.
func (s *service) DeleteMessage(ctx context.Context, messageID string) (err error) {
	if err := s.checkConnected(); err != nil {
		return err
	}
	ctx, end := s.otel.startSpan(ctx, "msgbox.DeleteMessage", attribute.String("message_id", messageID))
	start := time.Now()
	defer func() {
		end(err)
		s.otel.recordDelete(ctx, time.Since(start), err)
	}()

	if err := s.store.Delete(ctx, messageID); err != nil {
		return wrapStoreError("delete message", err)
	}

	if pubErr := s.events.MessageDeleted.Publish(ctx, MessageDeletedEvent{
		MessageID: messageID,
		DeletedAt: time.Now().UTC(),
	}); pubErr != nil {
		s.opts.safeEventPublishFailure("MessageDeleted", pubErr)
	}
	return nil
}

// userMailbox is the Mailbox of one viewer.
type userMailbox struct {
	userID  UserID
	service *service
}

func (m *userMailbox) UserID() UserID {
	return m.userID
}

// checkAccess validates the viewer and the service state.
func (m *userMailbox) checkAccess() error {
	if !m.userID.Valid() {
		return ErrInvalidUserID
	}
	return m.service.checkConnected()
}

func (m *userMailbox) Opponent(msg *Message) (UserID, bool) {
	return Opponent(msg, m.userID)
}
