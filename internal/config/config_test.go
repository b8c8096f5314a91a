package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "msgbox.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %q", cfg.Store.Driver)
	}
	if !cfg.Service.AtomicCreate {
		t.Error("expected atomic creation by default")
	}
	if cfg.Redis.CacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache ttl, got %v", cfg.Redis.CacheTTL)
	}
	if cfg.Store.Postgres.StatesTable != "message_states" {
		t.Errorf("unexpected states table %q", cfg.Store.Postgres.StatesTable)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, `
store:
  driver: postgres
  postgres:
    dsn: postgres://localhost/msgbox
    timeout: 3s
service:
  atomic_create: false
  max_query_limit: 25
log:
  format: json
`)
	t.Setenv("MSGBOX_REDIS_ADDR", "localhost:6379")
	t.Setenv("MSGBOX_SERVICE_NAME", "chat")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.Postgres.DSN != "postgres://localhost/msgbox" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.Postgres.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.Store.Postgres.Timeout)
	}
	if cfg.Service.AtomicCreate || cfg.Service.MaxQueryLimit != 25 {
		t.Errorf("unexpected service config: %+v", cfg.Service)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Service.Name != "chat" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Redis, cfg.Service)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"postgres without dsn", "store:\n  driver: postgres\n", "store.postgres.dsn"},
		{"mongo without uri", "store:\n  driver: mongo\n", "store.mongo.uri"},
		{"unknown driver", "store:\n  driver: sqlite\n", "unknown store.driver"},
		{"unknown log format", "log:\n  format: xml\n", "unknown log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDumpMasksPassword(t *testing.T) {
	cfg := &Config{Redis: RedisConfig{Addr: "redis.local", Password: "secret", CacheTTL: time.Minute}}
	var buf bytes.Buffer
	if err := cfg.Dump(&buf); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "secret") {
		t.Error("password must be masked")
	}
	if !strings.Contains(out, "addr: redis.local") || !strings.Contains(out, "cache_ttl: 1m0s") {
		t.Errorf("unexpected dump:\n%s", out)
	}
	if cfg.Redis.Password != "secret" {
		t.Error("dump must not modify the config")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.newLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}
