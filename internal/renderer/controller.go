package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screensolve/internal/host"
	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
)

var (
	// ErrDecodeFailed reports a source image the worker could not decode.
	ErrDecodeFailed = errors.New("image decode failed")
	// ErrNoData reports a transcode that produced no output.
	ErrNoData = errors.New("compression returned no data")
	// ErrNotReady reports a worker that never signalled readiness.
	ErrNotReady = errors.New("rendering worker did not become ready")
)

// DefaultReadyTimeout bounds the wait for a worker readiness signal.
const DefaultReadyTimeout = 10 * time.Second

// Host creates workers and routes requests to the live one.
type Host interface {
	CreateWorker(ctx context.Context) error
	Request(ctx context.Context, msg any) (any, error)
}

// Signals exposes runtime broadcasts.
type Signals interface {
	Once(match func(msg any) bool) (<-chan any, func())
	Listen(fn func(msg any)) func()
}

type state int

const (
	stateUninitialized state = iota
	stateCreating
	stateReady
)

func (s state) String() string {
	switch s {
	case stateCreating:
		return "creating"
	case stateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Controller manages worker readiness and routes transcode requests.
type Controller struct {
	host         Host
	signals      Signals
	logger       *slog.Logger
	readyTimeout time.Duration

	mu      sync.Mutex
	state   state
	pending chan struct{}
	lastErr error
	stop    func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithReadyTimeout overrides DefaultReadyTimeout.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.readyTimeout = d
		}
	}
}

// NewController builds a controller. Call Close to release its bus listener.
func NewController(h Host, signals Signals, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		host:         h,
		signals:      signals,
		logger:       logging.NewComponentLogger(logger, "renderer"),
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.stop = signals.Listen(func(msg any) {
		if _, ok := msg.(WorkerStopped); ok {
			c.markStopped()
		}
	})
	return c
}

// Close detaches the controller from the runtime bus.
func (c *Controller) Close() {
	if c.stop != nil {
		c.stop()
	}
}

// State reports the controller state for diagnostics.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

// EnsureReady returns once a worker has signalled readiness. Callers arriving
// while a creation is in flight wait for that attempt instead of starting
// another. A waiter whose own context is still live starts a fresh attempt
// when the shared one ended only because its creator's context did.
func (c *Controller) EnsureReady(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch c.state {
		case stateReady:
			c.mu.Unlock()
			return nil
		case stateCreating:
			pending := c.pending
			c.mu.Unlock()
			select {
			case <-pending:
			case <-ctx.Done():
				return ctx.Err()
			}
			c.mu.Lock()
			st, lastErr := c.state, c.lastErr
			c.mu.Unlock()
			switch {
			case st == stateReady:
				return nil
			case isContextErr(lastErr) && ctx.Err() == nil:
				continue
			case lastErr != nil:
				return lastErr
			}
			return ErrNotReady
		}
		c.state = stateCreating
		pending := make(chan struct{})
		c.pending = pending
		c.mu.Unlock()

		err := c.create(ctx)

		c.mu.Lock()
		if err != nil {
			c.state = stateUninitialized
		} else {
			c.state = stateReady
		}
		c.lastErr = err
		c.pending = nil
		close(pending)
		c.mu.Unlock()
		return err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Controller) create(ctx context.Context) error {
	ready, cancel := c.signals.Once(func(msg any) bool {
		_, ok := msg.(ReadySignal)
		return ok
	})
	defer cancel()

	err := c.host.CreateWorker(ctx)
	if errors.Is(err, host.ErrWorkerExists) {
		c.logger.Debug("rendering worker already exists; awaiting readiness")
		_, perr := c.host.Request(ctx, pingRequest{})
		switch {
		case perr == nil:
			return nil
		case errors.Is(perr, host.ErrNoReceiver):
			// The existing worker was torn down after CreateWorker saw it.
			err = c.host.CreateWorker(ctx)
		default:
			err = nil
		}
	}
	if err != nil && !errors.Is(err, host.ErrWorkerExists) {
		return fmt.Errorf("create rendering worker: %w", err)
	}

	timer := time.NewTimer(c.readyTimeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrNotReady
	}
}

func (c *Controller) markStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateReady {
		c.state = stateUninitialized
	}
}

// Transcode downscales src to at most maxWidth pixels wide and re-encodes it as
// JPEG at the given quality factor (0..1). A worker torn down between the
// readiness check and the request is recreated and the request sent once more.
func (c *Controller) Transcode(ctx context.Context, src imagedata.Image, maxWidth int, quality float64) (imagedata.Image, error) {
	req := compressRequest{
		Source:   src.DataURL(),
		MaxWidth: maxWidth,
		Quality:  quality,
	}
	resp, err := c.send(ctx, req)
	if errors.Is(err, host.ErrNoReceiver) {
		c.logger.Debug("rendering worker went away; recreating", logging.Error(err))
		c.markStopped()
		resp, err = c.send(ctx, req)
	}
	if err != nil {
		if errors.Is(err, host.ErrNoReceiver) {
			c.markStopped()
		}
		return imagedata.Image{}, fmt.Errorf("transcode: %w", err)
	}
	out, ok := resp.(compressResponse)
	if !ok {
		return imagedata.Image{}, fmt.Errorf("transcode: unexpected reply %T", resp)
	}
	if out.DecodeFailed {
		return imagedata.Image{}, fmt.Errorf("%w: %s", ErrDecodeFailed, out.Detail)
	}
	if out.DataURL == "" {
		return imagedata.Image{}, ErrNoData
	}
	img, err := imagedata.ParseDataURL(out.DataURL)
	if err != nil {
		return imagedata.Image{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	return img, nil
}

func (c *Controller) send(ctx context.Context, req compressRequest) (any, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return c.host.Request(ctx, req)
}
