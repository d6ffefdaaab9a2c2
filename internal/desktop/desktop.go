package desktop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screensolve/internal/host"
	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
)

// Option configures the desktop capabilities.
type Option func(*runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type runner struct {
	command string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

func newRunner(command string, timeout time.Duration, opts []Option) runner {
	r := runner{
		command: strings.TrimSpace(command),
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r runner) run(ctx context.Context, surface string) ([]byte, error) {
	binary, args, err := splitCommand(r.command, surface)
	if err != nil {
		return nil, err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	started := time.Now()
	out, err := r.exec.Output(ctx, binary, args)
	r.logger.Debug("desktop command finished",
		logging.String("binary", binary),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("bytes", len(out)),
		logging.Bool("ok", err == nil),
	)
	return out, err
}

// SurfaceResolver resolves the active surface by running a command whose
// first non-empty output line is the surface identifier.
type SurfaceResolver struct {
	runner
}

// NewSurfaceResolver constructs a resolver around the configured command.
func NewSurfaceResolver(command string, timeout time.Duration, opts ...Option) *SurfaceResolver {
	return &SurfaceResolver{runner: newRunner(command, timeout, opts)}
}

// ActiveSurface implements host.SurfaceResolver. Empty output means no surface.
func (r *SurfaceResolver) ActiveSurface(ctx context.Context) (host.Surface, bool, error) {
	out, err := r.run(ctx, "")
	if err != nil {
		return host.Surface{}, false, fmt.Errorf("resolve active surface: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		surface := host.Surface{ID: host.SurfaceID(line)}
		return surface, surface.Valid(), nil
	}
	return host.Surface{}, false, nil
}

// Capturer captures a surface by running a command that writes an encoded
// image to stdout.
type Capturer struct {
	runner
}

// NewCapturer constructs a capturer around the configured command.
func NewCapturer(command string, timeout time.Duration, opts ...Option) *Capturer {
	return &Capturer{runner: newRunner(command, timeout, opts)}
}

// CaptureVisible implements host.Capturer.
func (c *Capturer) CaptureVisible(ctx context.Context, surface host.Surface) (imagedata.Image, error) {
	if !surface.Valid() {
		return imagedata.Image{}, host.ErrNoSurface
	}
	out, err := c.run(ctx, surface.ID.String())
	if err != nil {
		return imagedata.Image{}, fmt.Errorf("capture surface %s: %w", surface.ID, err)
	}
	img := imagedata.New(out, "")
	if img.Empty() {
		return imagedata.Image{}, fmt.Errorf("capture surface %s: %w", surface.ID, imagedata.ErrEmpty)
	}
	if !img.IsImage() {
		return imagedata.Image{}, fmt.Errorf("capture surface %s: output is %s, not an image", surface.ID, img.MediaType)
	}
	return img, nil
}

var (
	_ host.SurfaceResolver = (*SurfaceResolver)(nil)
	_ host.Capturer        = (*Capturer)(nil)
)
