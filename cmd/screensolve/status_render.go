package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"screensolve/internal/daemonctl"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Width of the "Label:" column in status output.
const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

var kindStyles = [...]struct{ tag, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

var severityKinds = map[string]statusKind{
	daemonctl.SeverityOK:    statusOK,
	daemonctl.SeverityWarn:  statusWarn,
	daemonctl.SeverityError: statusError,
}

var titleCaser = cases.Title(language.Und)

// titleCase turns identifiers like "no_surface" into "No Surface".
func titleCase(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func statusKindFromSeverity(severity string) statusKind {
	return severityKinds[severity]
}

func paint(color, s string, colorize bool) string {
	if !colorize {
		return s
	}
	return color + s + ansiReset
}

// renderStatusLine formats "  Label:   [TAG] message", tinted by kind.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := kindStyles[kind]
	body := strings.TrimSpace("[" + style.tag + "] " + message)
	return paint(style.color, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", body), colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(ansiBlue, heading, colorize),
		paint(ansiBlue, strings.Repeat("-", len(heading)), colorize),
	}
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
