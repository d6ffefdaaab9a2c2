package overlay

import (
	"context"
	"log/slog"
	"time"

	"screensolve/internal/logging"
	"screensolve/internal/notifications"
	"screensolve/internal/notify"
)

// Frame is one rendered widget state. Notification is set only on frames
// produced by an incoming notification.
type Frame struct {
	Surface      string              `json:"surface"`
	State        string              `json:"state"`
	Kind         string              `json:"kind,omitempty"`
	HTML         string              `json:"html"`
	Notification notify.Notification `json:"-"`
}

// Presenter displays frames. Present runs on the agent goroutine and must not
// block for long.
type Presenter interface {
	Present(ctx context.Context, f Frame) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, f Frame) error

func (fn PresenterFunc) Present(ctx context.Context, f Frame) error { return fn(ctx, f) }

// LogPresenter writes one structured line per widget transition.
type LogPresenter struct {
	Logger *slog.Logger
}

func (p LogPresenter) Present(_ context.Context, f Frame) error {
	if p.Logger == nil {
		return nil
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldSurface, f.Surface),
		logging.String("state", f.State),
	}
	if f.Notification != nil {
		attrs = append(attrs, logging.String(logging.FieldNotification, string(f.Notification.Kind())))
		attrs = append(attrs, notify.Match(f.Notification, notify.Cases[[]logging.Attr]{
			Started: func(notify.Started) []logging.Attr { return nil },
			Result: func(r notify.Result) []logging.Attr {
				return []logging.Attr{
					logging.String("answer", r.Answer),
					logging.Int("confidence_pct", Percent(r.Confidence)),
				}
			},
			Failure: func(fl notify.Failure) []logging.Attr {
				return []logging.Attr{logging.String("message", fl.Message)}
			},
		})...)
	}
	p.Logger.Info("overlay updated", logging.Args(attrs...)...)
	return nil
}

// NtfyPresenter mirrors final outcomes to a notifications.Service. Publishing
// happens off the agent goroutine.
type NtfyPresenter struct {
	Service notifications.Service
	Logger  *slog.Logger
	Timeout time.Duration
}

func (p NtfyPresenter) Present(_ context.Context, f Frame) error {
	if p.Service == nil || f.Notification == nil {
		return nil
	}
	event, payload, ok := notify.Match(f.Notification, notify.Cases[ntfyEvent]{
		Started: func(notify.Started) ntfyEvent { return ntfyEvent{} },
		Result: func(r notify.Result) ntfyEvent {
			return ntfyEvent{notifications.EventSolveResult, notifications.Payload{
				"answer":    r.Answer,
				"percent":   Percent(r.Confidence),
				"rationale": r.Rationale,
			}, true}
		},
		Failure: func(fl notify.Failure) ntfyEvent {
			return ntfyEvent{notifications.EventSolveFailed, notifications.Payload{"message": fl.Message}, true}
		},
	}).unpack()
	if !ok {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.Service.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(p.Logger, "ntfy publish failed", "ntfy_publish_failed",
				logging.String(logging.FieldSurface, f.Surface),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "outcome not mirrored to ntfy"),
			)
		}
	}()
	return nil
}

type ntfyEvent struct {
	event   notifications.Event
	payload notifications.Payload
	ok      bool
}

func (e ntfyEvent) unpack() (notifications.Event, notifications.Payload, bool) {
	return e.event, e.payload, e.ok
}
