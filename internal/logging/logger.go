package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
	// NoColor disables ANSI colours on the console handler even when stdout is a
	// terminal.
	NoColor bool
}

// New builds a logger writing to every path in opts.OutputPaths ("stdout",
// "stderr", or a file). Files are appended to and their directories created.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	writer, interactive, err := openWriters(paths)
	if err != nil {
		return nil, err
	}

	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "json":
		return slog.New(newJSONHandler(writer, levelVar, addSource)), nil
	case "", "console":
		return slog.New(tint.NewHandler(writer, &tint.Options{
			Level:      levelVar,
			AddSource:  addSource,
			TimeFormat: time.DateTime,
			NoColor:    opts.NoColor || !interactive,
		})), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", opts.Format)
	}
}

// parseLevel accepts slog level names in any case plus "warning"; anything
// else is info.
func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if level == "" || l.UnmarshalText([]byte(level)) != nil {
		return slog.LevelInfo
	}
	return l
}

// openWriters resolves output paths. interactive is true only when every
// writer is a terminal, so colour codes never land in log files.
func openWriters(paths []string) (io.Writer, bool, error) {
	var writers []io.Writer
	interactive := true
	seen := make(map[string]bool, len(paths))
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		w, tty, err := openOutput(path)
		if err != nil {
			return nil, false, err
		}
		writers = append(writers, w)
		interactive = interactive && tty
	}

	switch len(writers) {
	case 0:
		return os.Stdout, isTerminal(os.Stdout), nil
	case 1:
		return writers[0], interactive, nil
	}
	return io.MultiWriter(writers...), interactive, nil
}

func openOutput(path string) (io.Writer, bool, error) {
	switch path {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open log file: %w", err)
	}
	return f, false, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
