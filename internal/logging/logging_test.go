package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewJSONWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "daemon.log")
	logger, err := New(Options{Format: "json", Level: "debug", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", String(FieldRunID, "r1"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if entry["msg"] != "hello" || entry["run_id"] != "r1" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key in %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithContextAddsRunAndSurface(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithSurface(WithRunID(context.Background(), "run-7"), "tab-3")

	WithContext(ctx, base).Info("step")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-7"`) || !strings.Contains(out, `"surface":"tab-3"`) {
		t.Fatalf("missing context fields: %s", out)
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WarnWithContext(logger, "careful", "thing_failed", String(FieldImpact, "custom"))

	out := buf.String()
	for _, want := range []string{`"event_type":"thing_failed"`, `"error_hint":"check logs for details"`, `"impact":"custom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestTeeDuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	base := slog.New(slog.NewTextHandler(&a, nil))
	extra := slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn})

	logger := Tee(base, extra, nil).With(String(FieldComponent, "test"))
	logger.Info("info line")
	logger.Warn("warn line")

	if !strings.Contains(a.String(), "info line") || !strings.Contains(a.String(), "warn line") {
		t.Fatalf("base missing lines: %s", a.String())
	}
	if strings.Contains(b.String(), "info line") || !strings.Contains(b.String(), "component=test") {
		t.Fatalf("extra handler saw unexpected output: %s", b.String())
	}
}

func TestPruneLogsKeepsRecentAndProtected(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	active := filepath.Join(dir, "active.log")
	fresh := filepath.Join(dir, "fresh.log")
	for _, p := range []string{old, active, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-72 * time.Hour)
	for _, p := range []string{old, active} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed := PruneLogs(NewNop(), dir, "*.log", 24*time.Hour, active)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old log should be gone, stat err=%v", err)
	}
	for _, p := range []string{active, fresh} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should remain: %v", p, err)
		}
	}
}
