package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"screensolve/internal/host"
	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
	"screensolve/internal/notify"
	"screensolve/internal/renderer"
	"screensolve/internal/solver"
)

const (
	// DefaultCommand is the trigger command name.
	DefaultCommand = "capture-solve"
	// MaxWidth bounds the transcoded image width in pixels.
	MaxWidth = 1280
	// Quality is the JPEG quality factor on a 0..1 scale.
	Quality = 0.7
)

// User-facing failure messages.
const (
	MessageTimeout    = "Request timed out"
	MessageDecode     = "Image decode failed"
	MessageNoData     = "Compression returned no data"
	MessageUnknownErr = "Unknown error"
)

// ErrRunInFlight rejects a command while another run is active.
var ErrRunInFlight = errors.New("a capture-solve run is already in flight")

// Transcoder re-encodes captures for transmission.
type Transcoder interface {
	Transcode(ctx context.Context, src imagedata.Image, maxWidth int, quality float64) (imagedata.Image, error)
}

// Solver calls the remote solving endpoint.
type Solver interface {
	Solve(ctx context.Context, img imagedata.Image) (solver.Answer, error)
}

// Deliverer hands notifications to the overlay agent of a surface.
type Deliverer interface {
	Deliver(ctx context.Context, surface host.SurfaceID, n notify.Notification) error
}

// Dependencies are the collaborators of a Controller.
type Dependencies struct {
	Surfaces   host.SurfaceResolver
	Capturer   host.Capturer
	Transcoder Transcoder
	Solver     Solver
	Deliverer  Deliverer
	Logger     *slog.Logger
	// Command overrides DefaultCommand.
	Command string
}

// Controller runs the capture-and-solve pipeline.
type Controller struct {
	deps    Dependencies
	command string
	logger  *slog.Logger
	now     func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	last    *RunSummary
}

// New builds a controller.
func New(deps Dependencies) *Controller {
	command := deps.Command
	if command == "" {
		command = DefaultCommand
	}
	return &Controller{
		deps:    deps,
		command: command,
		logger:  logging.NewComponentLogger(deps.Logger, "pipeline"),
		now:     time.Now,
	}
}

// Command returns the trigger command name.
func (c *Controller) Command() string { return c.command }

// Busy reports whether a run is in flight.
func (c *Controller) Busy() bool { return c.running.Load() }

// Last returns the summary of the most recent run.
func (c *Controller) Last() (RunSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return RunSummary{}, false
	}
	return *c.last, true
}

// OnCommand handles a trigger command. Commands other than the configured
// trigger are ignored. The returned summary describes the finished run.
func (c *Controller) OnCommand(ctx context.Context, command string) (RunSummary, error) {
	if command != c.command {
		c.logger.Debug("command ignored", logging.String(logging.FieldCommand, command))
		return RunSummary{Outcome: OutcomeIgnored}, nil
	}
	if !c.running.CompareAndSwap(false, true) {
		logging.WarnWithContext(c.logger, "trigger rejected; run in flight", "run_rejected",
			logging.String(logging.FieldCommand, command),
			logging.String(logging.FieldErrorHint, "wait for the current run to finish"),
			logging.String(logging.FieldImpact, "trigger dropped"),
		)
		return RunSummary{}, ErrRunInFlight
	}
	defer c.running.Store(false)

	summary := c.run(ctx)
	c.mu.Lock()
	c.last = &summary
	c.mu.Unlock()
	return summary, nil
}

func (c *Controller) run(ctx context.Context) (summary RunSummary) {
	summary = RunSummary{ID: uuid.NewString(), StartedAt: c.now()}
	ctx = logging.WithRunID(ctx, summary.ID)
	logger := logging.WithContext(ctx, c.logger)
	defer func() {
		summary.Duration = c.now().Sub(summary.StartedAt)
	}()

	surface, ok, err := c.deps.Surfaces.ActiveSurface(ctx)
	if err != nil {
		logger.Warn("active surface lookup failed", logging.Error(err),
			logging.String(logging.FieldEventType, "surface_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check capture.active_surface_command"),
			logging.String(logging.FieldImpact, "run aborted without notification"),
		)
	}
	if err != nil || !ok || !surface.Valid() {
		summary.Outcome = OutcomeNoSurface
		logger.Info("no active surface; run aborted")
		return summary
	}
	summary.Surface = surface.ID
	ctx = logging.WithSurface(ctx, surface.ID.String())
	logger = logging.WithContext(ctx, c.logger)
	logger.Info("run started", logging.String(logging.FieldEventType, "run_started"))

	if err := c.deps.Deliverer.Deliver(ctx, surface.ID, notify.Started{}); err != nil {
		logger.Debug("started notification not delivered", logging.Error(err))
	}

	final := c.execute(ctx, surface)
	notify.Match(final, notify.Cases[struct{}]{
		Started: func(notify.Started) struct{} { return struct{}{} },
		Result: func(r notify.Result) struct{} {
			summary.Outcome = OutcomeResult
			summary.Answer = r.Answer
			summary.Confidence = r.Confidence
			return struct{}{}
		},
		Failure: func(f notify.Failure) struct{} {
			summary.Outcome = OutcomeFailure
			summary.Message = f.Message
			return struct{}{}
		},
	})

	if err := c.deps.Deliverer.Deliver(ctx, surface.ID, final); err != nil {
		summary.DeliveryError = err.Error()
		logging.ErrorWithContext(logger, "final notification not delivered", "delivery_failed",
			logging.Error(err),
			logging.String(logging.FieldNotification, string(final.Kind())),
			logging.String(logging.FieldErrorHint, "check that the overlay agent can be installed"),
		)
		return summary
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("outcome", string(summary.Outcome)),
	)
	return summary
}

func (c *Controller) execute(ctx context.Context, surface host.Surface) notify.Notification {
	logger := logging.WithContext(ctx, c.logger)

	raw, err := c.deps.Capturer.CaptureVisible(ctx, surface)
	if err != nil {
		return c.fail(logger, "capture", err)
	}
	small, err := c.deps.Transcoder.Transcode(ctx, raw, MaxWidth, Quality)
	if err != nil {
		return c.fail(logger, "transcode", err)
	}
	logger.Debug("capture transcoded",
		logging.Int("raw_bytes", len(raw.Data)),
		logging.Int("bytes", len(small.Data)),
	)
	answer, err := c.deps.Solver.Solve(ctx, small)
	if err != nil {
		return c.fail(logger, "solve", err)
	}
	return notify.Result{
		Answer:     answer.Answer,
		Confidence: notify.ClampConfidence(answer.Confidence),
		Rationale:  answer.Rationale,
	}
}

func (c *Controller) fail(logger *slog.Logger, stage string, err error) notify.Notification {
	msg := FailureMessage(err)
	logging.WarnWithContext(logger, "run failed", "run_failed",
		logging.String("stage", stage),
		logging.Error(err),
		logging.String("message", msg),
		logging.String(logging.FieldImpact, "error shown in overlay"),
	)
	return notify.Failure{Message: msg}
}

// FailureMessage converts a run error into the message shown to the user.
func FailureMessage(err error) string {
	var status *solver.StatusError
	switch {
	case err == nil:
		return MessageUnknownErr
	case errors.Is(err, solver.ErrTimeout):
		return MessageTimeout
	case errors.Is(err, renderer.ErrDecodeFailed):
		return MessageDecode
	case errors.Is(err, renderer.ErrNoData):
		return MessageNoData
	case errors.As(err, &status):
		return status.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MessageUnknownErr
}

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeResult    Outcome = "result"
	OutcomeFailure   Outcome = "failure"
	OutcomeNoSurface Outcome = "no_surface"
	OutcomeIgnored   Outcome = "ignored"
)

// RunSummary describes one finished run. Only the last one is retained.
type RunSummary struct {
	ID            string         `json:"id"`
	Surface       host.SurfaceID `json:"surface"`
	Outcome       Outcome        `json:"outcome"`
	Answer        string         `json:"answer,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	Message       string         `json:"message,omitempty"`
	DeliveryError string         `json:"delivery_error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"-"`
}

// MarshalJSON reports Duration as whole milliseconds under duration_ms.
func (s RunSummary) MarshalJSON() ([]byte, error) {
	type plain RunSummary
	return json.Marshal(struct {
		plain
		DurationMS int64 `json:"duration_ms"`
	}{plain(s), s.Duration.Milliseconds()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *RunSummary) UnmarshalJSON(data []byte) error {
	type plain RunSummary
	var wire struct {
		plain
		DurationMS int64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = RunSummary(wire.plain)
	s.Duration = time.Duration(wire.DurationMS) * time.Millisecond
	return nil
}

func (s RunSummary) String() string {
	switch s.Outcome {
	case OutcomeResult:
		return fmt.Sprintf("%s (%d%%)", s.Answer, int(s.Confidence*100+0.5))
	case OutcomeFailure:
		return s.Message
	default:
		return string(s.Outcome)
	}
}
