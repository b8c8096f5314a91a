// Package app wires a msgbox service from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbaliyan/msgbox"
	"github.com/rbaliyan/msgbox/internal/config"
	"github.com/rbaliyan/msgbox/store"
	"github.com/rbaliyan/msgbox/store/cached"
	"github.com/rbaliyan/msgbox/store/memory"
	mongostore "github.com/rbaliyan/msgbox/store/mongo"
	"github.com/rbaliyan/msgbox/store/postgres"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// App owns a connected service and the clients behind it.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   store.Store
	Service msgbox.Service

	rdb     *redis.Client
	closers []func(context.Context) error
}

// Open builds the store described by cfg, wraps it with the redis counts
// cache when configured, and connects a service over it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...msgbox.Option) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = st

	opts := []msgbox.Option{
		msgbox.WithStore(st),
		msgbox.WithLogger(logger),
		msgbox.WithServiceName(cfg.Service.Name),
		msgbox.WithAtomicCreate(cfg.Service.AtomicCreate),
		msgbox.WithMaxBodySize(cfg.Service.MaxBodySize),
		msgbox.WithMaxQueryLimit(cfg.Service.MaxQueryLimit),
		msgbox.WithNotificationTimeout(cfg.Service.NotificationTimeout),
		msgbox.WithOTel(cfg.Service.OTel),
	}
	if rdb := a.redisClient(); rdb != nil && cfg.Redis.Events {
		opts = append(opts, msgbox.WithRedisClient(rdb))
	}
	opts = append(opts, extra...)

	svc, err := msgbox.NewService(opts...)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("create service: %w", err)
	}
	if err := svc.Connect(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("connect service: %w", err)
	}
	a.Service = svc
	a.closers = append([]func(context.Context) error{svc.Close}, a.closers...)
	return a, nil
}

// Migrate creates the schema or indexes of the configured backend.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a := &App{Config: cfg, Logger: logger}
	defer a.Close(ctx)

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if err := st.Connect(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.Store.Driver, err)
	}
	logger.Info("schema is up to date", "driver", cfg.Store.Driver)
	return st.Close(ctx)
}

// Close stops the service, then releases the clients it used.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config
	var base store.Store

	switch cfg.Store.Driver {
	case config.DriverMemory:
		base = memory.New()

	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		base = postgres.NewFromDB(db,
			postgres.WithMessagesTable(cfg.Store.Postgres.MessagesTable),
			postgres.WithStatesTable(cfg.Store.Postgres.StatesTable),
			postgres.WithTimeout(cfg.Store.Postgres.Timeout),
			postgres.WithLogger(a.Logger),
		)

	case config.DriverMongo:
		client, err := mongo.Connect(mongoopts.Client().ApplyURI(cfg.Store.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)
		base = mongostore.New(client,
			mongostore.WithDatabase(cfg.Store.Mongo.Database),
			mongostore.WithMessagesCollection(cfg.Store.Mongo.MessagesCollection),
			mongostore.WithStatesCollection(cfg.Store.Mongo.StatesCollection),
			mongostore.WithTimeout(cfg.Store.Mongo.Timeout),
			mongostore.WithLogger(a.Logger),
		)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	rdb := a.redisClient()
	if rdb == nil || !cfg.Redis.CacheCounts {
		return base, nil
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("redis unavailable, counts are read from the store", "addr", cfg.Redis.Addr, "error", err)
		return base, nil
	}
	return cached.New(base, rdb,
		cached.WithPrefix(cfg.Redis.CachePrefix),
		cached.WithTTL(cfg.Redis.CacheTTL),
		cached.WithLogger(a.Logger),
	), nil
}

// redisClient returns the shared redis client, creating it on first use.
// It returns nil when no address is configured.
func (a *App) redisClient() redis.UniversalClient {
	if a.Config.Redis.Addr == "" {
		return nil
	}
	if a.rdb == nil {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		a.closers = append(a.closers, func(context.Context) error { return a.rdb.Close() })
	}
	return a.rdb
}
