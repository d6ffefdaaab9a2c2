package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneLogs deletes files in dir whose names match pattern and whose
// modification time is older than maxAge. keep lists paths that must survive
// regardless of age (typically the active log). A non-positive maxAge is a
// no-op. It returns the number of files removed.
func PruneLogs(logger *slog.Logger, dir, pattern string, maxAge time.Duration, keep ...string) int {
	if maxAge <= 0 || dir == "" {
		return 0
	}
	if pattern == "" {
		pattern = "*"
	}
	protected := make(map[string]bool, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			protected[abs] = true
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, path := range matches {
		abs, err := filepath.Abs(path)
		if err != nil || protected[abs] {
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(abs); err != nil {
			WarnWithContext(logger, "log prune failed", "log_prune_failed",
				String("path", abs),
				Error(err),
				String(FieldErrorHint, "check permissions on the log directory"),
				String(FieldImpact, "stale log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", abs), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
