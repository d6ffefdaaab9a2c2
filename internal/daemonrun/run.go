// Package daemonrun hosts the screensolved process: logging setup, the PID
// file, the daemon itself and its IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"screensolve/internal/config"
	"screensolve/internal/daemon"
	"screensolve/internal/ipc"
	"screensolve/internal/logging"
	"screensolve/internal/preflight"
)

const logPrefix = "screensolve"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic adds a JSON debug log under log_dir/debug tagged with a
	// session id.
	Diagnostic bool
}

// Run starts the daemon and blocks until a signal or an IPC stop request.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("%s-%s.log", logPrefix, runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if opts.Diagnostic {
		logger = withDiagnostics(logger, cfg.Paths.LogDir, runID)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s.log link: %v\n", logPrefix, err)
	}
	retention := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
	logging.PruneLogs(logger, cfg.Paths.LogDir, logPrefix+"-*.log", retention, logPath)
	logging.PruneLogs(logger, filepath.Join(cfg.Paths.LogDir, "debug"), logPrefix+"-*.log", retention)
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger, daemon.WithLogPath(logPath))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another screensolved may hold the lock; run screensolve status"),
			logging.String(logging.FieldImpact, "triggers will not be handled"))
		return err
	}

	ipcServer, err := ipc.NewServer(runCtx, cfg.SocketPath(), d, logger, ipc.WithShutdown(shutdown))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-runCtx.Done()
	logger.Info("screensolve daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func withDiagnostics(logger *slog.Logger, logDir, runID string) *slog.Logger {
	debugDir := filepath.Join(logDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create debug log directory: %v\n", err)
		return logger
	}
	debugPath := filepath.Join(debugDir, fmt.Sprintf("%s-%s.log", logPrefix, runID))
	debugLogger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{debugPath},
		Development: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
		return logger
	}
	sessionID := uuid.NewString()
	logger = logging.Tee(logger, debugLogger.Handler()).With(logging.String("session_id", sessionID))
	if err := ensureCurrentLogPointer(debugDir, debugPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update debug log link: %v\n", err)
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String("debug_log_path", debugPath))
	return logger
}

// ensureCurrentLogPointer points log_dir/screensolve.log at the active run log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPrefix+".log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("solver_url", cfg.Solver.URL),
		logging.String("trigger_command", cfg.Trigger.Command),
		logging.Bool("udev_trigger", cfg.Trigger.UdevSubsystem != ""),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		key := strings.ReplaceAll(strings.ToLower(status.Name), " ", "_") + "_available"
		attrs = append(attrs, logging.Bool(key, status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
