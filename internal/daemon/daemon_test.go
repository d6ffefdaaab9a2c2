package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"screensolve/internal/config"
	"screensolve/internal/daemon"
	"screensolve/internal/host"
	"screensolve/internal/imagedata"
	"screensolve/internal/notifications"
	"screensolve/internal/overlay"
	"screensolve/internal/pipeline"
	"screensolve/internal/solver"
)

type fakeSurfaces struct{ id host.SurfaceID }

func (f fakeSurfaces) ActiveSurface(context.Context) (host.Surface, bool, error) {
	if f.id == "" {
		return host.Surface{}, false, nil
	}
	return host.Surface{ID: f.id}, true, nil
}

type pngCapturer struct{}

func (pngCapturer) CaptureVisible(context.Context, host.Surface) (imagedata.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for x := 0; x < 64; x++ {
		img.Set(x, x/2, color.RGBA{B: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return imagedata.Image{}, err
	}
	return imagedata.New(buf.Bytes(), imagedata.MediaTypePNG), nil
}

type fakeSolver struct {
	mu      sync.Mutex
	release chan struct{}
	images  []imagedata.Image
}

func (f *fakeSolver) Solve(ctx context.Context, img imagedata.Image) (solver.Answer, error) {
	f.mu.Lock()
	f.images = append(f.images, img)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return solver.Answer{}, ctx.Err()
		}
	}
	return solver.Answer{Answer: "42", Confidence: 0.92, Rationale: "6*7"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Overlay.ViewerEnabled = true
	cfg.Overlay.ViewerBind = "127.0.0.1:0"
	cfg.Overlay.ViewerToken = "secret"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) *daemon.Daemon {
	t.Helper()
	base := []daemon.Option{
		daemon.WithSurfaceResolver(fakeSurfaces{id: "win-1"}),
		daemon.WithCapturer(pngCapturer{}),
		daemon.WithSolver(&fakeSolver{}),
		daemon.WithNotifier(&recordingNotifier{}),
	}
	d, err := daemon.New(cfg, nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.ViewerAddress == "" {
		t.Fatal("expected viewer address")
	}
	if status.WorkerState != "uninitialized" {
		t.Fatalf("expected idle worker state, got %s", status.WorkerState)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := newDaemon(t, cfg)
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected lock contention for a second instance")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := d.Trigger(ctx, "", true); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}

	if err := other.Start(ctx); err != nil {
		t.Fatalf("expected lock to be released after stop: %v", err)
	}
}

func TestDaemonTriggerRendersOverlay(t *testing.T) {
	cfg := testConfig(t)
	solve := &fakeSolver{}
	d := newDaemon(t, cfg, daemon.WithSolver(solve))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	summary, err := d.Trigger(ctx, "", true)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if summary.Outcome != pipeline.OutcomeResult || summary.Answer != "42" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	solve.mu.Lock()
	if len(solve.images) != 1 || solve.images[0].MediaType != imagedata.MediaTypeJPEG {
		t.Fatalf("expected one JPEG upload, got %+v", solve.images)
	}
	solve.mu.Unlock()

	snap, err := d.Snapshot(ctx, "win-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Phase != overlay.PhaseVisible || snap.Kind != "result" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	status := d.Status(ctx)
	if len(status.Overlays) != 1 || status.Overlays[0].Surface != "win-1" || status.Overlays[0].Phase != "visible" {
		t.Fatalf("unexpected overlays %+v", status.Overlays)
	}
	if status.LastRun == nil || status.LastRun.Outcome != pipeline.OutcomeResult {
		t.Fatalf("expected last run in status, got %+v", status.LastRun)
	}

	ignored, err := d.Trigger(ctx, "something-else", true)
	if err != nil || ignored.Outcome != pipeline.OutcomeIgnored {
		t.Fatalf("expected ignored command, got %+v %v", ignored, err)
	}
}

func TestDaemonDismiss(t *testing.T) {
	cfg := testConfig(t)
	d := newDaemon(t, cfg, daemon.WithAgentOptions(overlay.WithTimings(time.Hour, 10*time.Millisecond)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Trigger(ctx, "", true); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if err := d.Dismiss(ctx, "unknown"); !errors.Is(err, host.ErrNoReceiver) {
		t.Fatalf("expected ErrNoReceiver for unknown surface, got %v", err)
	}
	count, err := d.DismissAll("")
	if err != nil || count != 1 {
		t.Fatalf("expected one dismissed overlay, got %d %v", count, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := d.Snapshot(ctx, "win-1")
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Phase == overlay.PhaseAbsent {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("widget not removed after dismissal: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonBackgroundTriggerRejectsOverlap(t *testing.T) {
	cfg := testConfig(t)
	solve := &fakeSolver{release: make(chan struct{})}
	d := newDaemon(t, cfg, daemon.WithSolver(solve))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Trigger(ctx, "", false); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !d.Status(ctx).Busy {
		if time.Now().After(deadline) {
			t.Fatal("run never became busy")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := d.Trigger(ctx, "", false); !errors.Is(err, pipeline.ErrRunInFlight) {
		t.Fatalf("expected ErrRunInFlight, got %v", err)
	}
	close(solve.release)
}

func TestViewerServerRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.Status(ctx).ViewerAddress

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status over http")
	}

	resp, err = http.Get(base + "/overlay?token=secret")
	if err != nil {
		t.Fatalf("get overlay: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected overlay page with query token, got %d", resp.StatusCode)
	}
}

func TestTestNotification(t *testing.T) {
	cfg := testConfig(t)
	notifier := &recordingNotifier{}
	d := newDaemon(t, cfg, daemon.WithNotifier(notifier))

	sent, message, err := d.TestNotification(context.Background())
	if err != nil || sent || message != "ntfy topic not configured" {
		t.Fatalf("expected unconfigured result, got %v %q %v", sent, message, err)
	}

	cfg.Notifications.NtfyTopic = "https://ntfy.example/topic"
	sent, _, err = d.TestNotification(context.Background())
	if err != nil || !sent {
		t.Fatalf("expected test notification to be sent, got %v %v", sent, err)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventTest {
		t.Fatalf("unexpected events %v", notifier.events)
	}
}
