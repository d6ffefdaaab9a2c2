package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"screensolve/internal/bus"
	"screensolve/internal/config"
	"screensolve/internal/delivery"
	"screensolve/internal/deps"
	"screensolve/internal/desktop"
	"screensolve/internal/host"
	"screensolve/internal/logging"
	"screensolve/internal/notifications"
	"screensolve/internal/overlay"
	"screensolve/internal/pipeline"
	"screensolve/internal/preflight"
	"screensolve/internal/renderer"
	"screensolve/internal/solver"
)

const snapshotTimeout = 500 * time.Millisecond

// ErrNotRunning reports a request made while the daemon is stopped.
var ErrNotRunning = errors.New("daemon is not running")

// Daemon coordinates the runtime contexts and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	logPath  string
	lockPath string
	lock     *flock.Flock

	surfaces  host.SurfaceResolver
	capturer  host.Capturer
	solver    pipeline.Solver
	notifier  notifications.Service
	viewer    *overlay.Viewer
	agentOpts []overlay.AgentOption

	running atomic.Bool

	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	bus          *bus.Bus
	workers      *renderer.WorkerHost
	transcoder   *renderer.Controller
	pipeline     *pipeline.Controller
	viewerSrv    *viewerServer
	monitor      *triggerMonitor
	dependencies []deps.Status

	installMu sync.Mutex
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithSurfaceResolver replaces the command-backed surface resolver.
func WithSurfaceResolver(r host.SurfaceResolver) Option {
	return func(d *Daemon) { d.surfaces = r }
}

// WithCapturer replaces the command-backed capturer.
func WithCapturer(c host.Capturer) Option {
	return func(d *Daemon) { d.capturer = c }
}

// WithSolver replaces the HTTP solver client.
func WithSolver(s pipeline.Solver) Option {
	return func(d *Daemon) { d.solver = s }
}

// WithNotifier replaces the ntfy notification service.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) { d.notifier = svc }
}

// WithAgentOptions passes extra options to every overlay agent.
func WithAgentOptions(opts ...overlay.AgentOption) Option {
	return func(d *Daemon) { d.agentOpts = append(d.agentOpts, opts...) }
}

// WithLogPath records the daemon log file reported by Status.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// New constructs a daemon. Runtime contexts are created by Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.surfaces == nil {
		d.surfaces = desktop.NewSurfaceResolver(cfg.Capture.ActiveSurfaceCommand, cfg.CaptureTimeout(),
			desktop.WithLogger(logging.NewComponentLogger(logger, "desktop")))
	}
	if d.capturer == nil {
		d.capturer = desktop.NewCapturer(cfg.Capture.Command, cfg.CaptureTimeout(),
			desktop.WithLogger(logging.NewComponentLogger(logger, "desktop")))
	}
	if d.solver == nil {
		d.solver = solver.New(cfg.Solver.URL, solver.WithLogger(logger))
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	if cfg.Overlay.ViewerEnabled {
		d.viewer = overlay.NewViewer(logger, d.Dismiss)
	}
	return d, nil
}

// Start acquires the daemon lock and brings up the runtime contexts.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another screensolve daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	b := bus.New()
	workers := renderer.NewWorkerHost(runCtx, b, d.logger, d.cfg.WorkerIdle())
	transcoder := renderer.NewController(workers, b, d.logger,
		renderer.WithReadyTimeout(d.cfg.WorkerReadyTimeout()))

	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.bus = b
	d.workers = workers
	d.transcoder = transcoder
	d.pipeline = pipeline.New(pipeline.Dependencies{
		Surfaces:   d.surfaces,
		Capturer:   d.capturer,
		Transcoder: transcoder,
		Solver:     d.solver,
		Deliverer:  delivery.New(b, d, d.logger),
		Logger:     d.logger,
		Command:    d.cfg.Trigger.Command,
	})
	d.dependencies = preflight.CheckSystemDeps(d.cfg)
	d.mu.Unlock()

	for _, missing := range deps.Missing(d.dependencies) {
		logging.WarnWithContext(d.logger, "desktop tool unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("command", missing.Command),
			logging.String(logging.FieldErrorHint, "install the tool or adjust the [capture] section"),
			logging.String(logging.FieldImpact, "capture-solve runs will fail"),
		)
	}

	if d.viewer != nil {
		srv := newViewerServer(d.cfg, d, d.viewer, d.logger)
		if err := srv.start(runCtx); err != nil {
			d.teardown()
			return fmt.Errorf("start overlay viewer: %w", err)
		}
		d.mu.Lock()
		d.viewerSrv = srv
		d.mu.Unlock()
	}

	monitor := newTriggerMonitor(d.cfg, d.logger, d.handleDeviceTrigger)
	if err := monitor.Start(runCtx); err != nil {
		d.teardown()
		return fmt.Errorf("start trigger monitor: %w", err)
	}
	d.mu.Lock()
	d.monitor = monitor
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("screensolve daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("solver", d.cfg.Solver.URL),
	)
	return nil
}

// Stop tears down the runtime contexts and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.teardown()
	d.logger.Info("screensolve daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"))
}

func (d *Daemon) teardown() {
	d.mu.Lock()
	cancel := d.cancel
	b := d.bus
	transcoder := d.transcoder
	workers := d.workers
	srv := d.viewerSrv
	monitor := d.monitor
	d.ctx, d.cancel = nil, nil
	d.bus, d.workers, d.transcoder, d.pipeline = nil, nil, nil, nil
	d.viewerSrv, d.monitor = nil, nil
	d.mu.Unlock()

	monitor.Stop()
	srv.stop()
	if b != nil {
		for _, id := range b.Surfaces() {
			if mb, ok := b.Receiver(id); ok {
				mb.Close()
			}
			b.Detach(id, nil)
		}
	}
	if transcoder != nil {
		transcoder.Close()
	}
	if workers != nil {
		workers.Close()
	}
	if cancel != nil {
		cancel()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string { return d.logPath }

// Context returns the runtime context; it is nil while stopped.
func (d *Daemon) Context() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ctx
}

// Trigger dispatches command to the pipeline. With wait, the call returns the
// finished run; otherwise the run continues in the background and the
// returned summary is empty. A run already in flight yields
// pipeline.ErrRunInFlight.
func (d *Daemon) Trigger(ctx context.Context, command string, wait bool) (pipeline.RunSummary, error) {
	d.mu.RLock()
	ctrl, runCtx := d.pipeline, d.ctx
	d.mu.RUnlock()
	if ctrl == nil {
		return pipeline.RunSummary{}, ErrNotRunning
	}
	if command == "" {
		command = ctrl.Command()
	}
	if wait {
		return ctrl.OnCommand(runCtx, command)
	}
	if command == ctrl.Command() && ctrl.Busy() {
		return pipeline.RunSummary{}, pipeline.ErrRunInFlight
	}
	go func() {
		if _, err := ctrl.OnCommand(runCtx, command); err != nil && !errors.Is(err, pipeline.ErrRunInFlight) {
			d.logger.Warn("background run failed", logging.Error(err))
		}
	}()
	return pipeline.RunSummary{}, nil
}

func (d *Daemon) handleDeviceTrigger(ctx context.Context) error {
	_, err := d.Trigger(ctx, d.cfg.Trigger.Command, false)
	return err
}

// Dismiss closes the widget on surface, or on every surface when surface is
// empty.
func (d *Daemon) Dismiss(_ context.Context, surface host.SurfaceID) error {
	_, err := d.DismissAll(surface)
	return err
}

// DismissAll is Dismiss reporting the number of agents notified.
func (d *Daemon) DismissAll(surface host.SurfaceID) (int, error) {
	d.mu.RLock()
	b := d.bus
	d.mu.RUnlock()
	if b == nil {
		return 0, ErrNotRunning
	}
	targets := []host.SurfaceID{surface}
	if surface == "" {
		targets = b.Surfaces()
	}
	count := 0
	for _, id := range targets {
		if err := b.PostToSurface(id, overlay.Dismiss{}); err != nil {
			if surface != "" {
				return count, err
			}
			continue
		}
		count++
	}
	return count, nil
}

// TestNotification publishes a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool                 `json:"running"`
	PID            int                  `json:"pid"`
	LockFilePath   string               `json:"lock_path"`
	SocketPath     string               `json:"socket_path"`
	LogPath        string               `json:"log_path"`
	SolverURL      string               `json:"solver_url"`
	Command        string               `json:"command"`
	Busy           bool                 `json:"busy"`
	WorkerState    string               `json:"worker_state"`
	WorkerAlive    bool                 `json:"worker_alive"`
	Overlays       []OverlayStatus      `json:"overlays"`
	ViewerAddress  string               `json:"viewer_address,omitempty"`
	ViewerClients  int                  `json:"viewer_clients"`
	TriggerMonitor bool                 `json:"trigger_monitor"`
	LastRun        *pipeline.RunSummary `json:"last_run,omitempty"`
	Dependencies   []deps.Status        `json:"dependencies"`
}

// OverlayStatus describes the widget on one surface.
type OverlayStatus struct {
	Surface host.SurfaceID `json:"surface"`
	Phase   string         `json:"phase"`
	Kind    string         `json:"kind,omitempty"`
}

// Snapshot asks the agent on surface for its current widget state.
func (d *Daemon) Snapshot(ctx context.Context, surface host.SurfaceID) (overlay.Snapshot, error) {
	d.mu.RLock()
	b := d.bus
	d.mu.RUnlock()
	if b == nil {
		return overlay.Snapshot{}, ErrNotRunning
	}
	mb, ok := b.Receiver(surface)
	if !ok {
		return overlay.Snapshot{}, fmt.Errorf("snapshot %s: %w", surface, host.ErrNoReceiver)
	}
	value, err := mb.Request(ctx, overlay.SnapshotRequest{})
	if err != nil {
		return overlay.Snapshot{}, fmt.Errorf("snapshot %s: %w", surface, err)
	}
	snap, ok := value.(overlay.Snapshot)
	if !ok {
		return overlay.Snapshot{}, fmt.Errorf("snapshot %s: unexpected reply %T", surface, value)
	}
	return snap, nil
}

func (d *Daemon) overlays(ctx context.Context, surfaces []host.SurfaceID) []OverlayStatus {
	out := make([]OverlayStatus, 0, len(surfaces))
	for _, id := range surfaces {
		reqCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		snap, err := d.Snapshot(reqCtx, id)
		cancel()
		if err != nil {
			continue
		}
		out = append(out, OverlayStatus{Surface: id, Phase: snap.Phase.String(), Kind: string(snap.Kind)})
	}
	return out
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		LogPath:      d.logPath,
		SolverURL:    d.cfg.Solver.URL,
		Command:      d.cfg.Trigger.Command,
		WorkerState:  "uninitialized",
	}
	d.mu.RLock()
	var surfaces []host.SurfaceID
	if d.bus != nil {
		surfaces = d.bus.Surfaces()
	}
	if d.pipeline != nil {
		status.Busy = d.pipeline.Busy()
		if last, ok := d.pipeline.Last(); ok {
			status.LastRun = &last
		}
	}
	if d.transcoder != nil {
		status.WorkerState = d.transcoder.State()
	}
	if d.workers != nil {
		status.WorkerAlive = d.workers.Alive()
	}
	if d.viewerSrv != nil {
		status.ViewerAddress = d.viewerSrv.address()
	}
	if d.viewer != nil {
		status.ViewerClients = d.viewer.Clients()
	}
	status.TriggerMonitor = d.monitor.Running()
	status.Dependencies = append(status.Dependencies, d.dependencies...)
	d.mu.RUnlock()

	status.Overlays = d.overlays(ctx, surfaces)
	return status
}
