package overlay

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"screensolve/internal/bus"
	"screensolve/internal/host"
	"screensolve/internal/logging"
	"screensolve/internal/notify"
)

const (
	// AutoHideDelay is how long a widget stays visible without a new notification.
	AutoHideDelay = 15000 * time.Millisecond
	// FadeDuration is the grace period between fading and removal.
	FadeDuration = 300 * time.Millisecond
)

// Phase is the widget lifecycle state.
type Phase int

const (
	PhaseAbsent Phase = iota
	PhaseVisible
	PhaseFading
)

func (p Phase) String() string {
	switch p {
	case PhaseVisible:
		return "visible"
	case PhaseFading:
		return "fading"
	default:
		return "absent"
	}
}

// Dismiss is the explicit user dismissal message.
type Dismiss struct{}

// SnapshotRequest asks an agent for its current widget state.
type SnapshotRequest struct{}

// Snapshot describes the widget at one instant.
type Snapshot struct {
	Surface host.SurfaceID
	Phase   Phase
	Kind    notify.Kind
	HTML    string
	// Mounts counts how many times the widget was created from absent.
	Mounts int
	// PendingTimers is 0 or 1.
	PendingTimers int
	// Delay of the pending timer as scheduled.
	PendingDelay time.Duration
}

type fadeDue struct{ gen uint64 }

type removeDue struct{ gen uint64 }

// Agent renders notifications for one surface.
type Agent struct {
	surface    host.SurfaceID
	clock      Clock
	autoHide   time.Duration
	fade       time.Duration
	presenters []Presenter
	logger     *slog.Logger
	mb         *bus.Mailbox

	// Owned by the mailbox goroutine.
	phase      Phase
	kind       notify.Kind
	content    template.HTML
	gen        uint64
	timer      Timer
	timerDelay time.Duration
	mounts     int
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithClock replaces the wall clock.
func WithClock(c Clock) AgentOption {
	return func(a *Agent) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithTimings overrides AutoHideDelay and FadeDuration.
func WithTimings(autoHide, fade time.Duration) AgentOption {
	return func(a *Agent) {
		if autoHide > 0 {
			a.autoHide = autoHide
		}
		if fade > 0 {
			a.fade = fade
		}
	}
}

// WithPresenters sets the sinks that receive rendered frames.
func WithPresenters(p ...Presenter) AgentOption {
	return func(a *Agent) { a.presenters = append(a.presenters, p...) }
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// NewAgent builds an agent for surface. Start its Mailbox to run it.
func NewAgent(surface host.SurfaceID, opts ...AgentOption) *Agent {
	a := &Agent{
		surface:  surface,
		clock:    realClock{},
		autoHide: AutoHideDelay,
		fade:     FadeDuration,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "overlay").With(
		logging.String(logging.FieldSurface, surface.String()),
	)
	a.mb = bus.NewMailbox("overlay:"+surface.String(), a.handle, bus.OnClose(a.stopTimer))
	return a
}

// Surface returns the surface the agent renders into.
func (a *Agent) Surface() host.SurfaceID { return a.surface }

// Mailbox returns the agent's execution context.
func (a *Agent) Mailbox() *bus.Mailbox { return a.mb }

func (a *Agent) handle(ctx context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case notify.Notification:
		a.show(ctx, m)
		return nil, nil
	case Dismiss:
		a.dismiss(ctx)
		return nil, nil
	case fadeDue:
		a.onFade(ctx, m.gen)
		return nil, nil
	case removeDue:
		a.onRemove(ctx, m.gen)
		return nil, nil
	case SnapshotRequest:
		return a.snapshot(), nil
	default:
		return nil, fmt.Errorf("overlay agent: unsupported message %T", msg)
	}
}

func (a *Agent) show(ctx context.Context, n notify.Notification) {
	if a.phase == PhaseAbsent {
		a.mounts++
	}
	a.phase = PhaseVisible
	a.kind = n.Kind()
	a.content = RenderContent(n)
	a.schedule(a.autoHide, func(gen uint64) any { return fadeDue{gen: gen} })
	a.present(ctx, n)
}

func (a *Agent) onFade(ctx context.Context, gen uint64) {
	if gen != a.gen || a.phase != PhaseVisible {
		return
	}
	a.phase = PhaseFading
	a.schedule(a.fade, func(gen uint64) any { return removeDue{gen: gen} })
	a.present(ctx, nil)
}

func (a *Agent) onRemove(ctx context.Context, gen uint64) {
	if gen != a.gen || a.phase != PhaseFading {
		return
	}
	a.timer = nil
	a.timerDelay = 0
	a.clear()
	a.present(ctx, nil)
}

func (a *Agent) dismiss(ctx context.Context) {
	if a.phase == PhaseAbsent {
		return
	}
	a.stopTimer()
	a.gen++
	a.clear()
	a.present(ctx, nil)
}

func (a *Agent) clear() {
	a.phase = PhaseAbsent
	a.kind = ""
	a.content = ""
}

// schedule replaces any pending timer. Stale expiries are discarded by the
// generation check in the handlers.
func (a *Agent) schedule(d time.Duration, event func(gen uint64) any) {
	a.stopTimer()
	a.gen++
	gen := a.gen
	a.timerDelay = d
	a.timer = a.clock.AfterFunc(d, func() {
		_ = a.mb.Post(event(gen))
	})
}

func (a *Agent) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
		a.timerDelay = 0
	}
}

func (a *Agent) snapshot() Snapshot {
	s := Snapshot{
		Surface: a.surface,
		Phase:   a.phase,
		Kind:    a.kind,
		HTML:    RenderWidget(a.surface.String(), a.phase, a.content),
		Mounts:  a.mounts,
	}
	if a.timer != nil {
		s.PendingTimers = 1
		s.PendingDelay = a.timerDelay
	}
	return s
}

func (a *Agent) present(ctx context.Context, n notify.Notification) {
	frame := Frame{
		Surface:      a.surface.String(),
		State:        a.phase.String(),
		Kind:         string(a.kind),
		HTML:         RenderWidget(a.surface.String(), a.phase, a.content),
		Notification: n,
	}
	for _, p := range a.presenters {
		if err := p.Present(ctx, frame); err != nil {
			logging.WarnWithContext(a.logger, "overlay presenter failed", "overlay_present_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the presenter configuration"),
				logging.String(logging.FieldImpact, "notification not shown on this sink"),
			)
		}
	}
}
