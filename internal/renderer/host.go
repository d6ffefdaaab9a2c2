package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screensolve/internal/bus"
	"screensolve/internal/host"
	"screensolve/internal/logging"
)

// DefaultIdleTimeout is how long an unused worker lives before teardown.
const DefaultIdleTimeout = 30 * time.Second

// WorkerHost creates and tears down the singleton rendering worker. At most one
// worker is alive at a time.
type WorkerHost struct {
	ctx    context.Context
	bus    *bus.Bus
	logger *slog.Logger
	idle   time.Duration

	mu     sync.Mutex
	worker *bus.Mailbox
	seq    int
}

// NewWorkerHost returns a host whose workers live no longer than ctx.
func NewWorkerHost(ctx context.Context, b *bus.Bus, logger *slog.Logger, idle time.Duration) *WorkerHost {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &WorkerHost{
		ctx:    ctx,
		bus:    b,
		logger: logging.NewComponentLogger(logger, "renderer"),
		idle:   idle,
	}
}

// CreateWorker starts a new worker. It fails with host.ErrWorkerExists when a
// worker is already alive.
func (h *WorkerHost) CreateWorker(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.worker != nil && h.worker.Alive() {
		return host.ErrWorkerExists
	}
	if err := h.ctx.Err(); err != nil {
		return fmt.Errorf("create rendering worker: %w", err)
	}

	h.seq++
	name := fmt.Sprintf("renderer-%d", h.seq)
	w := &worker{logger: h.logger.With(logging.String("worker", name))}

	var mb *bus.Mailbox
	mb = bus.NewMailbox(name, w.handle,
		bus.WithBuffer(1),
		bus.WithIdleTimeout(h.idle),
		bus.OnStart(func() {
			h.bus.Broadcast(ReadySignal{Worker: name})
		}),
		bus.OnClose(func() {
			h.release(mb)
			h.logger.Debug("rendering worker stopped", logging.String("worker", name))
			h.bus.Broadcast(WorkerStopped{Worker: name})
		}),
	)
	h.worker = mb
	mb.Start(h.ctx)
	h.logger.Debug("rendering worker created", logging.String("worker", name))
	return nil
}

// Request sends msg to the live worker and waits for its reply.
func (h *WorkerHost) Request(ctx context.Context, msg any) (any, error) {
	h.mu.Lock()
	mb := h.worker
	h.mu.Unlock()
	if mb == nil || !mb.Alive() {
		return nil, fmt.Errorf("rendering worker: %w", host.ErrNoReceiver)
	}
	return mb.Request(ctx, msg)
}

// Alive reports whether a worker currently runs.
func (h *WorkerHost) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worker != nil && h.worker.Alive()
}

// Close tears down the live worker, if any.
func (h *WorkerHost) Close() {
	h.mu.Lock()
	mb := h.worker
	h.mu.Unlock()
	if mb != nil {
		mb.Close()
	}
}

func (h *WorkerHost) release(mb *bus.Mailbox) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.worker == mb {
		h.worker = nil
	}
}
