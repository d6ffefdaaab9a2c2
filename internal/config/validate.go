package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTrigger(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSolver(); err != nil {
		return err
	}
	if err := c.validateOverlay(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return ensurePositive(map[string]int{
		"capture.timeout_seconds":         c.Capture.TimeoutSeconds,
		"transcode.worker_idle_seconds":   c.Transcode.WorkerIdleSeconds,
		"transcode.ready_timeout_seconds": c.Transcode.ReadyTimeoutSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"server.cache_size":               c.Server.CacheSize,
		"server.request_timeout_seconds":  c.Server.RequestTimeoutSeconds,
	})
}

func (c *Config) validateTrigger() error {
	if strings.ContainsAny(c.Trigger.Command, " \t") {
		return fmt.Errorf("trigger.command %q must not contain whitespace", c.Trigger.Command)
	}
	if c.Trigger.UdevDevice != "" && c.Trigger.UdevSubsystem == "" {
		return errors.New("trigger.udev_subsystem must be set when trigger.udev_device is set")
	}
	switch c.Trigger.UdevAction {
	case "add", "remove", "change", "bind", "unbind":
	default:
		return fmt.Errorf("trigger.udev_action %q is not a udev action", c.Trigger.UdevAction)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if len(strings.Fields(c.Capture.Command)) == 0 {
		return errors.New("capture.command must be set")
	}
	if len(strings.Fields(c.Capture.ActiveSurfaceCommand)) == 0 {
		return errors.New("capture.active_surface_command must be set")
	}
	return nil
}

func (c *Config) validateSolver() error {
	u, err := url.Parse(c.Solver.URL)
	if err != nil {
		return fmt.Errorf("solver.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("solver.url %q must use http or https", c.Solver.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("solver.url %q must include a host", c.Solver.URL)
	}
	return nil
}

func (c *Config) validateOverlay() error {
	if !c.Overlay.ViewerEnabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Overlay.ViewerBind); err != nil {
		return fmt.Errorf("overlay.viewer_bind: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind: %w", err)
	}
	switch c.Server.Provider {
	case ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("server.provider %q must be %q or %q", c.Server.Provider, ProviderOllama, ProviderGemini)
	}
	return nil
}

// ServerReady reports whether the solve API has credentials for its provider.
func (c *Config) ServerReady() error {
	if c.Server.Provider == ProviderGemini && c.Server.GeminiAPIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("server.gemini_api_key is required for the gemini provider. Set GEMINI_API_KEY or edit %s (create with 'screensolve config init')", defaultPath)
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
