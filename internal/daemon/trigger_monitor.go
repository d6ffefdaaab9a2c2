package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"screensolve/internal/config"
	"screensolve/internal/logging"
)

// triggerDebounce collapses the burst of uevents a single USB plug produces
// (one per interface) into one trigger.
const triggerDebounce = 2 * time.Second

// triggerMonitor listens for udev netlink events from a configured device and
// fires the capture-solve trigger when one arrives, so a USB foot switch or
// similar gadget can start runs without a window-manager hotkey.
type triggerMonitor struct {
	logger    *slog.Logger
	handler   func(ctx context.Context) error
	subsystem string
	device    string
	action    string
	now       func() time.Time

	mu       sync.Mutex
	conn     *netlink.UEventConn
	quit     chan struct{}
	running  bool
	lastFire time.Time
}

// newTriggerMonitor returns nil when no udev subsystem is configured.
func newTriggerMonitor(cfg *config.Config, logger *slog.Logger, handler func(ctx context.Context) error) *triggerMonitor {
	if cfg == nil {
		return nil
	}
	subsystem := strings.TrimSpace(cfg.Trigger.UdevSubsystem)
	if subsystem == "" {
		return nil
	}
	action := strings.TrimSpace(cfg.Trigger.UdevAction)
	if action == "" {
		action = "add"
	}
	return &triggerMonitor{
		logger:    logging.NewComponentLogger(logger, "trigger-monitor"),
		handler:   handler,
		subsystem: subsystem,
		device:    strings.TrimSpace(cfg.Trigger.UdevDevice),
		action:    action,
		now:       time.Now,
	}
}

// Start begins listening for udev netlink events.
func (m *triggerMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; runs can still be triggered over IPC",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "device trigger unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("trigger monitor started",
		logging.String(logging.FieldEventType, "trigger_monitor_started"),
		logging.String("subsystem", m.subsystem),
		logging.String("device", m.device),
		logging.String("action", m.action),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *triggerMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("trigger monitor stopped",
		logging.String(logging.FieldEventType, "trigger_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *triggerMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *triggerMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device triggers may be missed"),
			)
		}
	}
}

// buildMatcher selects events of the configured subsystem and action.
func (m *triggerMonitor) buildMatcher() netlink.Matcher {
	action := m.action
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": m.subsystem,
		},
	})
	return rules
}

// matchesDevice reports whether uevent comes from the configured device. An
// unset device accepts every event of the subsystem.
func (m *triggerMonitor) matchesDevice(uevent netlink.UEvent) bool {
	if m.device == "" {
		return true
	}
	for _, candidate := range []string{uevent.Env["DEVPATH"], uevent.Env["DEVNAME"], uevent.KObj} {
		if candidate == "" {
			continue
		}
		if candidate == m.device || strings.HasPrefix(candidate, m.device+"/") {
			return true
		}
	}
	return false
}

// debounced records a fire and reports whether one happened too recently.
func (m *triggerMonitor) debounced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !m.lastFire.IsZero() && now.Sub(m.lastFire) < triggerDebounce {
		return true
	}
	m.lastFire = now
	return false
}

func (m *triggerMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	if !m.matchesDevice(uevent) {
		m.logger.Debug("ignoring event for non-configured device",
			logging.String("kobj", uevent.KObj),
			logging.String("configured_device", m.device),
		)
		return
	}
	if m.debounced() {
		m.logger.Debug("ignoring repeated device event", logging.String("kobj", uevent.KObj))
		return
	}

	m.logger.Info("device trigger received",
		logging.String(logging.FieldEventType, "device_trigger"),
		logging.String("kobj", uevent.KObj),
		logging.String("action", string(uevent.Action)),
	)
	if m.handler == nil {
		return
	}
	if err := m.handler(ctx); err != nil {
		m.logger.Warn("device trigger rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "device_trigger_rejected"),
			logging.String(logging.FieldErrorHint, "wait for the current run to finish"),
			logging.String(logging.FieldImpact, "trigger dropped"),
		)
	}
}
