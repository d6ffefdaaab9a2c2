package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"screensolve/internal/host"
)

// ErrClosed reports a mailbox that no longer accepts messages. It matches
// host.ErrNoReceiver so senders can treat a dead context as an absent one.
var ErrClosed = fmt.Errorf("mailbox closed: %w", host.ErrNoReceiver)

// Handler processes one message inside a mailbox's goroutine.
type Handler func(ctx context.Context, msg any) (any, error)

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithBuffer sets the inbox capacity.
func WithBuffer(n int) Option {
	return func(m *Mailbox) {
		if n >= 0 {
			m.buffer = n
		}
	}
}

// WithIdleTimeout closes the mailbox after d without messages.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Mailbox) { m.idle = d }
}

// OnStart registers fn to run on the mailbox goroutine before any message is
// handled.
func OnStart(fn func()) Option {
	return func(m *Mailbox) { m.onStart = append(m.onStart, fn) }
}

// OnClose registers fn to run once the mailbox goroutine exits.
func OnClose(fn func()) Option {
	return func(m *Mailbox) { m.onClose = append(m.onClose, fn) }
}

type reply struct {
	value any
	err   error
}

type envelope struct {
	ctx   context.Context
	msg   any
	reply chan reply
}

// Mailbox is a single-goroutine execution context.
type Mailbox struct {
	name    string
	handler Handler
	buffer  int
	idle    time.Duration
	onStart []func()
	onClose []func()

	inbox     chan envelope
	quit      chan struct{}

	// gate orders admissions against the idle shutdown decision so an
	// admitted message is always handled.
	gate     sync.Mutex
	closing  bool
	admitted int

	done      chan struct{}
	startOnce sync.Once
	quitOnce  sync.Once
}

// NewMailbox builds a mailbox. Call Start to run it.
func NewMailbox(name string, handler Handler, opts ...Option) *Mailbox {
	m := &Mailbox{name: name, handler: handler, buffer: 16}
	for _, opt := range opts {
		opt(m)
	}
	m.inbox = make(chan envelope, m.buffer)
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	return m
}

// Name returns the mailbox label used in logs and errors.
func (m *Mailbox) Name() string { return m.name }

// Start launches the mailbox goroutine. It stops when ctx ends, Close is
// called, or the idle timeout elapses.
func (m *Mailbox) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.loop(ctx)
	})
}

// Done is closed once the mailbox goroutine has exited.
func (m *Mailbox) Done() <-chan struct{} { return m.done }

// Alive reports whether the mailbox still runs.
func (m *Mailbox) Alive() bool {
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Close stops the mailbox. Pending messages are dropped.
func (m *Mailbox) Close() {
	m.quitOnce.Do(func() { close(m.quit) })
}

// admit reserves a slot for one message unless the mailbox is shutting down.
func (m *Mailbox) admit() bool {
	m.gate.Lock()
	defer m.gate.Unlock()
	if m.closing {
		return false
	}
	m.admitted++
	return true
}

// withdraw releases an admit slot once its message is dequeued or abandoned.
func (m *Mailbox) withdraw() {
	m.gate.Lock()
	m.admitted--
	m.gate.Unlock()
}

// tryRetire marks the mailbox as closing when nothing is admitted or queued.
func (m *Mailbox) tryRetire() bool {
	m.gate.Lock()
	defer m.gate.Unlock()
	if m.admitted > 0 || len(m.inbox) > 0 {
		return false
	}
	m.closing = true
	return true
}

func (m *Mailbox) retire() {
	m.gate.Lock()
	m.closing = true
	m.gate.Unlock()
}

func (m *Mailbox) closedErr() error {
	return fmt.Errorf("%s: %w", m.name, ErrClosed)
}

// Request sends msg and waits for the handler's reply.
func (m *Mailbox) Request(ctx context.Context, msg any) (any, error) {
	if !m.admit() {
		return nil, m.closedErr()
	}
	env := envelope{ctx: ctx, msg: msg, reply: make(chan reply, 1)}
	select {
	case m.inbox <- env:
	case <-m.done:
		m.withdraw()
		return nil, m.closedErr()
	case <-ctx.Done():
		m.withdraw()
		return nil, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r.value, r.err
	case <-m.done:
		return nil, m.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post enqueues msg without waiting for it to be handled. It must not be called
// from the mailbox's own handler when the inbox may be full.
func (m *Mailbox) Post(msg any) error {
	if !m.admit() {
		return m.closedErr()
	}
	select {
	case m.inbox <- envelope{ctx: context.Background(), msg: msg}:
		return nil
	case <-m.done:
		m.withdraw()
		return m.closedErr()
	}
}

func (m *Mailbox) loop(ctx context.Context) {
	defer func() {
		m.retire()
		close(m.done)
		for _, fn := range m.onClose {
			fn()
		}
	}()

	for _, fn := range m.onStart {
		fn()
	}

	var idle <-chan time.Time
	var timer *time.Timer
	if m.idle > 0 {
		timer = time.NewTimer(m.idle)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.quit:
			return
		case <-idle:
			// A message admitted while the timer fired keeps the context alive.
			if m.tryRetire() {
				return
			}
			timer.Reset(m.idle)
		case env := <-m.inbox:
			m.withdraw()
			value, err := m.handle(env)
			if env.reply != nil {
				env.reply <- reply{value: value, err: err}
			}
			if timer != nil {
				timer.Reset(m.idle)
			}
		}
	}
}

func (m *Mailbox) handle(env envelope) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: handler panic: %v", m.name, r)
		}
	}()
	if m.handler == nil {
		return nil, errors.New("mailbox has no handler")
	}
	ctx := env.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return m.handler(ctx, env.msg)
}
