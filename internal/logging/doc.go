// Package logging assembles the structured slog loggers used across
// screensolve.
//
// It owns the console (tint) and JSON handlers, resolves output paths, and
// exposes context-aware helpers so pipeline code automatically tags log lines
// with run identifiers and surfaces. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
