package host

import (
	"context"
	"errors"
	"strings"

	"screensolve/internal/imagedata"
	"screensolve/internal/notify"
)

var (
	// ErrNoReceiver reports that no context is listening at the destination.
	ErrNoReceiver = errors.New("no receiver at destination")
	// ErrWorkerExists reports that the platform already hosts a rendering worker.
	ErrWorkerExists = errors.New("rendering worker already exists")
	// ErrNoSurface reports that no active surface could be resolved.
	ErrNoSurface = errors.New("no active surface")
)

// SurfaceID identifies a user-facing viewport (a window, a display output).
type SurfaceID string

func (id SurfaceID) String() string { return string(id) }

// Surface describes the viewport a pipeline run operates on.
type Surface struct {
	ID    SurfaceID
	Title string
}

// Valid reports whether the surface carries an identifier.
func (s Surface) Valid() bool {
	return strings.TrimSpace(string(s.ID)) != ""
}

// SurfaceResolver finds the currently active surface. ok is false when there is
// nothing to operate on.
type SurfaceResolver interface {
	ActiveSurface(ctx context.Context) (surface Surface, ok bool, err error)
}

// Capturer captures the visible content of a surface as a lossless raster image.
type Capturer interface {
	CaptureVisible(ctx context.Context, surface Surface) (imagedata.Image, error)
}

// Messenger delivers a notification to the overlay agent of a surface and waits
// for the agent to acknowledge it. It returns ErrNoReceiver when no agent is
// installed in the surface.
type Messenger interface {
	SendToSurface(ctx context.Context, surface SurfaceID, n notify.Notification) error
}

// AgentInstaller installs the overlay agent into a surface. Installing into a
// surface that already hosts an agent is a no-op.
type AgentInstaller interface {
	InstallAgent(ctx context.Context, surface SurfaceID) error
}
