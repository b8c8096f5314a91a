package postgres

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultMessagesTable = "messages"
	DefaultStatesTable   = "message_states"
	DefaultTimeout       = 10 * time.Second
)

// options holds PostgreSQL store configuration.
type options struct {
	messagesTable string
	statesTable   string
	timeout       time.Duration
	logger        *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		messagesTable: DefaultMessagesTable,
		statesTable:   DefaultStatesTable,
		timeout:       DefaultTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithMessagesTable sets the messages table name.
func WithMessagesTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.messagesTable = name
		}
	}
}

// WithStatesTable sets the message states table name.
func WithStatesTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.statesTable = name
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
