package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"screensolve/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SCREENSOLVE_SOLVER_URL", "NTFY_TOPIC", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "screensolve", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".local", "state", "screensolve"); cfg.Paths.StateDir != want {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, want)
	}
	if cfg.SocketPath() != filepath.Join(cfg.Paths.StateDir, "screensolve.sock") {
		t.Fatalf("unexpected socket path %q", cfg.SocketPath())
	}
	if cfg.Trigger.Command != "capture-solve" {
		t.Fatalf("trigger command = %q", cfg.Trigger.Command)
	}
	if cfg.Server.Model != "llava" {
		t.Fatalf("expected ollama default model, got %q", cfg.Server.Model)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "screensolve.toml")

	type payload struct {
		Solver struct {
			URL string `toml:"url"`
		} `toml:"solver"`
		Server struct {
			Provider     string `toml:"provider"`
			GeminiAPIKey string `toml:"gemini_api_key"`
		} `toml:"server"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	var custom payload
	custom.Solver.URL = "https://solver.example.com/screen-solve"
	custom.Server.Provider = "Gemini"
	custom.Server.GeminiAPIKey = "k"
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Solver.URL != custom.Solver.URL {
		t.Fatalf("solver url = %q", cfg.Solver.URL)
	}
	if cfg.Server.Provider != config.ProviderGemini || cfg.Server.Model != "gemini-2.5-flash" {
		t.Fatalf("provider=%q model=%q", cfg.Server.Provider, cfg.Server.Model)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("log format = %q", cfg.Logging.Format)
	}
	if err := cfg.ServerReady(); err != nil {
		t.Fatalf("ServerReady: %v", err)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nprovider = \"gemini\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := "GEMINI_API_KEY=from-dotenv\nSCREENSOLVE_SOLVER_URL=http://10.0.0.2:9000/screen-solve\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("SCREENSOLVE_SOLVER_URL")
	})

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GeminiAPIKey != "from-dotenv" {
		t.Fatalf("gemini key = %q", cfg.Server.GeminiAPIKey)
	}
	if cfg.Solver.URL != "http://10.0.0.2:9000/screen-solve" {
		t.Fatalf("solver url = %q", cfg.Solver.URL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"solver scheme", func(c *config.Config) { c.Solver.URL = "ftp://x/y" }, "solver.url"},
		{"provider", func(c *config.Config) { c.Server.Provider = "openai" }, "server.provider"},
		{"udev device without subsystem", func(c *config.Config) { c.Trigger.UdevDevice = "/devices/x" }, "trigger.udev_subsystem"},
		{"udev action", func(c *config.Config) { c.Trigger.UdevAction = "explode" }, "trigger.udev_action"},
		{"capture command", func(c *config.Config) { c.Capture.Command = "  " }, "capture.command"},
		{"idle", func(c *config.Config) { c.Transcode.WorkerIdleSeconds = -1 }, "transcode.worker_idle_seconds"},
		{"viewer bind", func(c *config.Config) { c.Overlay.ViewerBind = "nope" }, "overlay.viewer_bind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestServerReadyRequiresGeminiKey(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Provider = config.ProviderGemini
	if err := cfg.ServerReady(); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample does not parse: %v", err)
	}
}
