package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screensolve/internal/config"
	"screensolve/internal/daemon"
	"screensolve/internal/host"
	"screensolve/internal/imagedata"
	"screensolve/internal/ipc"
	"screensolve/internal/logging"
	"screensolve/internal/solver"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	solverURL  string
	logPath    string
}

type stubSurfaces struct{}

func (stubSurfaces) ActiveSurface(context.Context) (host.Surface, bool, error) {
	return host.Surface{ID: "term-1"}, true, nil
}

type stubCapturer struct{}

func (stubCapturer) CaptureVisible(context.Context, host.Surface) (imagedata.Image, error) {
	return imagedata.New(testPNG(), imagedata.MediaTypePNG), nil
}

type stubSolver struct{}

func (stubSolver) Solve(context.Context, imagedata.Image) (solver.Answer, error) {
	return solver.Answer{Answer: "x = 3", Confidence: 0.75}, nil
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// newSolverServer answers /health and /screen-solve like the solve API.
func newSolverServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(solver.Health{Status: "ok", ModelConfigured: true})
	})
	mux.HandleFunc("/screen-solve", func(w http.ResponseWriter, r *http.Request) {
		var req solver.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !strings.HasPrefix(req.ImageDataURL, "data:image/") {
			http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(solver.Answer{Answer: "7", Confidence: 0.5, Rationale: "counted"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupCLITestEnv writes a config file pointing at temp dirs and a stub solver.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	solverSrv := newSolverServer(t)
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[solver]
url = %q

[overlay]
viewer_enabled = false
`, filepath.Join(base, "state"), filepath.Join(base, "logs"), solverSrv.URL+"/screen-solve")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		solverURL:  solverSrv.URL + "/screen-solve",
		logPath:    filepath.Join(cfg.Paths.LogDir, "screensolve-test.log"),
	}
}

// startDaemon runs an in-process daemon with stubbed desktop and solver.
func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	logger := logging.NewNop()
	d, err := daemon.New(env.cfg, logger,
		daemon.WithSurfaceResolver(stubSurfaces{}),
		daemon.WithCapturer(stubCapturer{}),
		daemon.WithSolver(stubSolver{}),
		daemon.WithLogPath(env.logPath),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", substr, output)
	}
}
