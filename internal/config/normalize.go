package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTrigger()
	c.normalizeCapture()
	c.normalizeSolver()
	c.normalizeOverlay()
	c.normalizeNotifications()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTrigger() {
	c.Trigger.Command = strings.TrimSpace(c.Trigger.Command)
	if c.Trigger.Command == "" {
		c.Trigger.Command = defaultTriggerCommand
	}
	c.Trigger.UdevSubsystem = strings.TrimSpace(c.Trigger.UdevSubsystem)
	c.Trigger.UdevDevice = strings.TrimSpace(c.Trigger.UdevDevice)
	c.Trigger.UdevAction = strings.ToLower(strings.TrimSpace(c.Trigger.UdevAction))
	if c.Trigger.UdevAction == "" {
		c.Trigger.UdevAction = defaultUdevAction
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.ActiveSurfaceCommand = strings.TrimSpace(c.Capture.ActiveSurfaceCommand)
	if c.Capture.ActiveSurfaceCommand == "" {
		c.Capture.ActiveSurfaceCommand = defaultActiveSurfaceCommand
	}
	c.Capture.Command = strings.TrimSpace(c.Capture.Command)
	if c.Capture.Command == "" {
		c.Capture.Command = defaultCaptureCommand
	}
	if c.Capture.TimeoutSeconds == 0 {
		c.Capture.TimeoutSeconds = defaultCaptureTimeout
	}
	if c.Transcode.WorkerIdleSeconds == 0 {
		c.Transcode.WorkerIdleSeconds = defaultWorkerIdleSeconds
	}
	if c.Transcode.ReadyTimeoutSeconds == 0 {
		c.Transcode.ReadyTimeoutSeconds = defaultReadyTimeoutSeconds
	}
}

func (c *Config) normalizeSolver() {
	if value, ok := os.LookupEnv("SCREENSOLVE_SOLVER_URL"); ok && strings.TrimSpace(value) != "" {
		c.Solver.URL = value
	}
	c.Solver.URL = strings.TrimSpace(c.Solver.URL)
	if c.Solver.URL == "" {
		c.Solver.URL = defaultSolverURL
	}
}

func (c *Config) normalizeOverlay() {
	c.Overlay.ViewerBind = strings.TrimSpace(c.Overlay.ViewerBind)
	if c.Overlay.ViewerBind == "" {
		c.Overlay.ViewerBind = defaultViewerBind
	}
	c.Overlay.ViewerToken = strings.TrimSpace(c.Overlay.ViewerToken)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.Provider = strings.ToLower(strings.TrimSpace(c.Server.Provider))
	if c.Server.Provider == "" {
		c.Server.Provider = defaultProvider
	}
	c.Server.Model = strings.TrimSpace(c.Server.Model)
	if c.Server.Model == "" {
		switch c.Server.Provider {
		case ProviderGemini:
			c.Server.Model = defaultGeminiModel
		default:
			c.Server.Model = defaultOllamaModel
		}
	}
	c.Server.OllamaHost = strings.TrimSpace(c.Server.OllamaHost)
	if c.Server.OllamaHost == "" {
		if value, ok := os.LookupEnv("OLLAMA_HOST"); ok {
			c.Server.OllamaHost = strings.TrimSpace(value)
		}
	}
	c.Server.GeminiAPIKey = strings.TrimSpace(c.Server.GeminiAPIKey)
	if c.Server.GeminiAPIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Server.GeminiAPIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Server.GeminiAPIKey = strings.TrimSpace(value)
		}
	}
	if c.Server.CacheSize == 0 {
		c.Server.CacheSize = defaultCacheSize
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = defaultServerTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
