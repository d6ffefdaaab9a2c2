package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"screensolve/internal/bus"
	"screensolve/internal/host"
	"screensolve/internal/logging"
	"screensolve/internal/overlay"
)

// InstallAgent implements host.AgentInstaller: it starts an overlay agent for
// surface and attaches it to the runtime bus. A surface that already hosts a
// live agent is left untouched.
func (d *Daemon) InstallAgent(_ context.Context, surface host.SurfaceID) error {
	d.installMu.Lock()
	defer d.installMu.Unlock()

	d.mu.RLock()
	b, runCtx := d.bus, d.ctx
	d.mu.RUnlock()
	if b == nil || runCtx == nil {
		return ErrNotRunning
	}
	if _, ok := b.Receiver(surface); ok {
		return nil
	}

	opts := []overlay.AgentOption{
		overlay.WithLogger(d.logger),
		overlay.WithPresenters(d.presenters()...),
	}
	opts = append(opts, d.agentOpts...)
	agent := overlay.NewAgent(surface, opts...)
	mb := agent.Mailbox()
	if err := b.Attach(surface, mb); err != nil {
		if errors.Is(err, bus.ErrAttached) {
			return nil
		}
		return fmt.Errorf("install overlay agent: %w", err)
	}
	mb.Start(runCtx)
	d.logger.Debug("overlay agent installed",
		logging.String(logging.FieldSurface, surface.String()),
		logging.String(logging.FieldEventType, "agent_installed"),
	)
	return nil
}

func (d *Daemon) presenters() []overlay.Presenter {
	presenters := []overlay.Presenter{
		overlay.LogPresenter{Logger: logging.NewComponentLogger(d.logger, "overlay")},
		overlay.NtfyPresenter{
			Service: d.notifier,
			Logger:  logging.NewComponentLogger(d.logger, "ntfy"),
			Timeout: time.Duration(d.cfg.Notifications.RequestTimeout) * time.Second,
		},
	}
	if d.viewer != nil {
		presenters = append(presenters, d.viewer)
	}
	return presenters
}

var _ host.AgentInstaller = (*Daemon)(nil)
