package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"screensolve/internal/daemonctl"
	"screensolve/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	list := []ipc.DependencyStatus{
		{Name: "Screen capture"},
		{Name: "Surface resolver", Available: true, Command: "xdotool"},
		{Name: "Viewer", Optional: true, Detail: "disabled"},
	}
	lines := dependencyLines(list, daemonctl.BuildDependencySummary(list), false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %#v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "Summary") || !strings.Contains(lines[0], "[ERROR]") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not available") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: xdotool)") {
		t.Fatalf("unexpected third line %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] disabled") {
		t.Fatalf("unexpected fourth line %q", lines[3])
	}
	if !strings.Contains(lines[4], "Missing dependencies:") {
		t.Fatalf("unexpected last line %q", lines[4])
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"no_surface": "No Surface",
		"visible":    "Visible",
		"":           "",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Fatalf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}
