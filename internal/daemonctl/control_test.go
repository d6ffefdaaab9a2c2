package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"screensolve/internal/config"
	"screensolve/internal/ipc"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	return &cfg
}

func TestBuildDependencySummary(t *testing.T) {
	summary := BuildDependencySummary([]ipc.DependencyStatus{
		{Name: "a", Available: true},
		{Name: "b", Optional: true},
		{Name: "c"},
	})
	if summary.Total != 3 || summary.Available != 1 || summary.MissingRequired != 1 || summary.MissingOptional != 1 {
		t.Fatalf("unexpected counts: %#v", summary)
	}
	if summary.Severity != SeverityError {
		t.Fatalf("severity = %s, want error", summary.Severity)
	}
	if summary.Detail != "1/3 available (missing: 1 required, 1 optional)" {
		t.Fatalf("unexpected detail %q", summary.Detail)
	}

	empty := BuildDependencySummary(nil)
	if empty.Severity != SeverityInfo {
		t.Fatalf("expected info severity for empty list, got %s", empty.Severity)
	}

	ok := BuildDependencySummary([]ipc.DependencyStatus{{Available: true}})
	if ok.Severity != SeverityOK || ok.Detail != "1/1 available" {
		t.Fatalf("unexpected summary: %#v", ok)
	}
}

func TestDependencySeverity(t *testing.T) {
	cases := map[string]ipc.DependencyStatus{
		SeverityOK:    {Available: true},
		SeverityWarn:  {Optional: true},
		SeverityError: {},
	}
	for want, dep := range cases {
		if got := DependencySeverity(dep); got != want {
			t.Fatalf("DependencySeverity(%#v) = %s, want %s", dep, got, want)
		}
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	if pid, err := ReadPID(filepath.Join(dir, "missing.pid")); err != nil || pid != 0 {
		t.Fatalf("missing pid file: pid=%d err=%v", pid, err)
	}
	good := filepath.Join(dir, "good.pid")
	if err := os.WriteFile(good, []byte("1234\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if pid, err := ReadPID(good); err != nil || pid != 1234 {
		t.Fatalf("good pid file: pid=%d err=%v", pid, err)
	}
	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(bad); err == nil {
		t.Fatal("expected malformed pid error")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testConfig(t)
	if _, err := StopAndTerminate(cfg, 0); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if alive || pid != 0 || err != nil {
		t.Fatalf("ProcessInfo = %v %d %v", alive, pid, err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	solverSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "model_configured": true})
	}))
	defer solverSrv.Close()

	cfg := testConfig(t)
	cfg.Solver.URL = solverSrv.URL + "/screen-solve"
	cfg.Capture.Command = "definitely-not-a-real-binary-xyz"

	snap, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Daemon.Running {
		t.Fatal("expected daemon to be reported as not running")
	}
	lines := map[string]StatusLine{}
	for _, line := range snap.SystemChecks {
		lines[line.Label] = line
	}
	if lines["Daemon"].Severity != SeverityWarn {
		t.Fatalf("unexpected daemon line: %#v", lines["Daemon"])
	}
	if lines["Solver"].Severity != SeverityOK {
		t.Fatalf("unexpected solver line: %#v", lines["Solver"])
	}
	if lines["Device Trigger"].Severity != SeverityInfo {
		t.Fatalf("unexpected trigger line: %#v", lines["Device Trigger"])
	}
	if len(snap.Daemon.Dependencies) == 0 {
		t.Fatal("expected locally resolved dependencies")
	}
	if snap.DependencySummary.MissingRequired == 0 {
		t.Fatalf("expected missing capture binary to be counted: %#v", snap.DependencySummary)
	}
}
