package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rbaliyan/msgbox"
	"github.com/rbaliyan/msgbox/internal/config"
	"github.com/rbaliyan/msgbox/store/cached"
	"github.com/rbaliyan/msgbox/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: config.DriverMemory},
		Redis: config.RedisConfig{CacheCounts: true, CachePrefix: "test", CacheTTL: time.Minute},
		Service: config.ServiceConfig{
			Name:          "msgbox-test",
			AtomicCreate:  true,
			MaxBodySize:   1024,
			MaxQueryLimit: 10,
		},
	}
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, memoryConfig(), testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close(ctx)

	if _, ok := a.Store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", a.Store)
	}
	if !a.Service.IsConnected() {
		t.Fatal("expected connected service")
	}

	msg, err := a.Service.CreateInbox(ctx, msgbox.CreateRequest{SenderID: 5, RecipientID: 9, Body: "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if msg.ConversationGroup != "9_5" {
		t.Errorf("unexpected group %q", msg.ConversationGroup)
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.Service.IsConnected() {
		t.Error("expected service to be closed")
	}
}

func TestOpenWithRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.Redis.Addr = mr.Addr()

	a, err := Open(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close(ctx)

	if _, ok := a.Store.(*cached.Store); !ok {
		t.Fatalf("expected cached store, got %T", a.Store)
	}

	if _, err := a.Service.CreateAlert(ctx, msgbox.CreateRequest{RecipientID: 9, Body: "system"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	counts, err := a.Service.Client(9).Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Alerts != 1 || counts.New != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}
	if !mr.Exists("test:counts:9") {
		t.Error("expected counts to be cached in redis")
	}
}

func TestOpenRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := memoryConfig()
	cfg.Redis.Addr = addr

	a, err := Open(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close(ctx)

	if _, ok := a.Store.(*memory.Store); !ok {
		t.Errorf("expected fallback to the plain store, got %T", a.Store)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = "sqlite"
	if _, err := Open(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMigrateMemory(t *testing.T) {
	if err := Migrate(context.Background(), memoryConfig(), testLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
