// Package postgres provides a PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/msgbox/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL",
		"messages_table", s.opts.messagesTable, "states_table", s.opts.statesTable)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required tables and indexes.
// created_at defaults to clock_timestamp() so rows written in one
// transaction still order by insertion.
func (s *Store) ensureSchema(ctx context.Context) error {
	m, st := s.opts.messagesTable, s.opts.statesTable

	tables := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			sender_id BIGINT,
			recipient_id BIGINT NOT NULL,
			body TEXT NOT NULL CHECK (body <> ''),
			type VARCHAR(16) NOT NULL CHECK (type IN ('inbox', 'invitation', 'alert')),
			conversation_group VARCHAR(64),
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		)`, m),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			message_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived', 'trashed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			UNIQUE (message_id, user_id)
		)`, st, m),
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_status ON %s(user_id, status)`, st, st),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type ON %s(type, created_at DESC)`, m, m),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_group ON %s(conversation_group, created_at DESC) WHERE conversation_group IS NOT NULL`, m, m),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// validID reports whether id is a UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// mapStateErr translates constraint violations on the states table.
func mapStateErr(err error) error {
	switch pqCode(err) {
	case codeUniqueViolation:
		return store.ErrDuplicateEntry
	case codeForeignKeyViolation:
		return store.ErrNotFound
	}
	return err
}
