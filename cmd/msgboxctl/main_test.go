package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "msgbox.yaml")
	data := "store:\n  driver: memory\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSendPrintsID(t *testing.T) {
	out, err := run(t, "send", "inbox", "--from", "5", "--to", "9", "--body", "hello")
	if err != nil {
		t.Fatalf("send: %v\n%s", err, out)
	}
	if id := strings.TrimSpace(out); len(id) != 36 {
		t.Errorf("expected a uuid, got %q", id)
	}
}

func TestSendRejectsUnknownType(t *testing.T) {
	if _, err := run(t, "send", "dm", "--to", "9", "--body", "hello"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestSendValidationError(t *testing.T) {
	if _, err := run(t, "send", "inbox", "--to", "9", "--body", "   "); err == nil {
		t.Fatal("expected error for blank body")
	}
}

func TestCounts(t *testing.T) {
	out, err := run(t, "counts", "--user", "9")
	if err != nil {
		t.Fatalf("counts: %v\n%s", err, out)
	}
	for _, name := range []string{"conversations", "inbox", "invitations", "alerts", "new", "archived", "trashed"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected %q in output:\n%s", name, out)
		}
	}
}

func TestConversationRequiresWith(t *testing.T) {
	if _, err := run(t, "conversation", "--user", "9"); err == nil {
		t.Fatal("expected error without --with")
	}
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "driver: memory") {
		t.Errorf("expected driver in output:\n%s", out)
	}
}

func TestMigrateMemory(t *testing.T) {
	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short"); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	long := strings.Repeat("x", 50)
	if got := preview(long); len([]rune(got)) != 40 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected %q", got)
	}
}
