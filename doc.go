// Package msgbox provides per-user mailboxes with three message kinds:
// direct inbox messages, invitations and system alerts.
//
// Every message has one state row per participant that can see it. The
// state row carries that participant's status (active, archived, trashed),
// so archiving or trashing a message changes only one side's view. Inbox
// messages between two known users are threaded into a conversation keyed
// by GroupKey.
//
// # Basic Usage
//
//	svc, err := msgbox.NewService(
//	    msgbox.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	msg, err := svc.CreateInbox(ctx, msgbox.CreateRequest{
//	    SenderID:    5,
//	    RecipientID: 9,
//	    Body:        "hello",
//	})
//
//	mb := svc.Client(9)
//	latest, _ := mb.Conversations(ctx, msgbox.ListOptions{Limit: 20})
//	unread, _ := mb.NewCount(ctx)
//
// # Creation
//
// CreateInbox, CreateInvitation and CreateAlert validate the request, write
// the message and its state rows, then invoke the Notifier once. By default
// the writes are atomic and a *StateFanoutError means nothing was stored.
// With WithAtomicCreate(false) the rows are written one at a time and a
// *StateFanoutError carries the id of the partially written message.
//
// The Notifier runs in the background by default, so creation never waits
// for it. Notifier failures, and notifications dropped because every slot was
// busy or the service had closed, are logged and passed to the
// WithNotificationFailureHandler callback. They never fail creation.
//
// # Storage Backends
//
//   - PostgreSQL (store/postgres) - accepts *sql.DB or a DSN
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - In-memory (store/memory) - for testing
//   - Redis counts cache (store/cached) - wraps any of the above
//
// # Events
//
// Each service owns an event bus from github.com/rbaliyan/event/v3.
// Pass WithRedisClient or WithEventTransport to deliver events; otherwise
// they are dropped.
//
//	events := svc.Events()
//	events.MessageCreated.Subscribe(ctx, handler)
//	events.NotificationRequested.Subscribe(ctx, handler)
//
// Available events:
//   - MessageCreated - after a message and its states are stored
//   - MessageStatusChanged - when a viewer archives, trashes or restores
//   - MessageDeleted - when a message is removed
//   - NotificationRequested - published by the default Notifier
package msgbox
