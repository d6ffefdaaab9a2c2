package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains runtime directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Trigger configures how pipeline runs are started.
type Trigger struct {
	// Command is the only command name that starts a run.
	Command string `toml:"command"`
	// UdevSubsystem and UdevDevice select a device whose events fire the
	// trigger (for example a USB foot switch). Empty disables the monitor.
	UdevSubsystem string `toml:"udev_subsystem"`
	UdevDevice    string `toml:"udev_device"`
	UdevAction    string `toml:"udev_action"`
}

// Capture configures the desktop capture commands. {surface} in Command is
// replaced with the active surface identifier.
type Capture struct {
	ActiveSurfaceCommand string `toml:"active_surface_command"`
	Command              string `toml:"command"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// Transcode configures the rendering worker lifecycle.
type Transcode struct {
	WorkerIdleSeconds   int `toml:"worker_idle_seconds"`
	ReadyTimeoutSeconds int `toml:"ready_timeout_seconds"`
}

// Solver points at the remote solving endpoint.
type Solver struct {
	URL string `toml:"url"`
}

// Overlay configures the overlay viewer.
type Overlay struct {
	ViewerEnabled bool   `toml:"viewer_enabled"`
	ViewerBind    string `toml:"viewer_bind"`
	// ViewerToken, when set, is required as a bearer token by the viewer.
	ViewerToken string `toml:"viewer_token"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Results        bool   `toml:"results"`
	Errors         bool   `toml:"errors"`
}

// Server configures the bundled solve API.
type Server struct {
	Bind                  string `toml:"bind"`
	Provider              string `toml:"provider"`
	Model                 string `toml:"model"`
	OllamaHost            string `toml:"ollama_host"`
	GeminiAPIKey          string `toml:"gemini_api_key"`
	CacheSize             int    `toml:"cache_size"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for screensolve.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Trigger       Trigger       `toml:"trigger"`
	Capture       Capture       `toml:"capture"`
	Transcode     Transcode     `toml:"transcode"`
	Solver        Solver        `toml:"solver"`
	Overlay       Overlay       `toml:"overlay"`
	Notifications Notifications `toml:"notifications"`
	Server        Server        `toml:"server"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env"), ".env")

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv populates unset environment variables from the given files.
// Missing files are ignored.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			_ = godotenv.Load(p)
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("screensolve.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath is the daemon IPC socket.
func (c *Config) SocketPath() string { return filepath.Join(c.Paths.StateDir, "screensolve.sock") }

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.StateDir, "screensolve.lock") }

// PIDPath records the daemon process id.
func (c *Config) PIDPath() string { return filepath.Join(c.Paths.StateDir, "screensolve.pid") }

// CaptureTimeout bounds one capture command invocation.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSeconds) * time.Second
}

// WorkerIdle is how long the rendering worker may sit idle.
func (c *Config) WorkerIdle() time.Duration {
	return time.Duration(c.Transcode.WorkerIdleSeconds) * time.Second
}

// WorkerReadyTimeout bounds the wait for worker readiness.
func (c *Config) WorkerReadyTimeout() time.Duration {
	return time.Duration(c.Transcode.ReadyTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string { return sampleConfig }

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
