// Package delivery sends notifications to overlay agents, installing the agent
// into a surface that lacks one and retrying exactly once.
package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"screensolve/internal/host"
	"screensolve/internal/logging"
	"screensolve/internal/notify"
)

// Deliverer implements the deliver-or-install-then-retry policy.
type Deliverer struct {
	messenger host.Messenger
	installer host.AgentInstaller
	logger    *slog.Logger
}

// New returns a Deliverer.
func New(messenger host.Messenger, installer host.AgentInstaller, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		messenger: messenger,
		installer: installer,
		logger:    logging.NewComponentLogger(logger, "delivery"),
	}
}

// Deliver sends n to the agent of surface. When direct delivery fails the agent
// is installed and delivery is retried once; a second failure is returned.
func (d *Deliverer) Deliver(ctx context.Context, surface host.SurfaceID, n notify.Notification) error {
	first := d.messenger.SendToSurface(ctx, surface, n)
	if first == nil {
		return nil
	}
	logger := logging.WithContext(ctx, d.logger).With(
		logging.String(logging.FieldSurface, surface.String()),
		logging.String(logging.FieldNotification, string(n.Kind())),
	)
	logger.Debug("direct delivery failed; installing overlay agent", logging.Error(first))

	if err := d.installer.InstallAgent(ctx, surface); err != nil {
		return fmt.Errorf("install overlay agent in %s: %w", surface, err)
	}
	if err := d.messenger.SendToSurface(ctx, surface, n); err != nil {
		return fmt.Errorf("deliver %s to %s after install: %w", n.Kind(), surface, err)
	}
	logger.Debug("notification delivered after agent install")
	return nil
}
