package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"screensolve/internal/config"
	"screensolve/internal/ipc"
)

// commandContext carries persistent flag values and the lazily loaded
// config shared by every subcommand of one invocation.
type commandContext struct {
	configFlag string
	logLevel   string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) configPath() string {
	return strings.TrimSpace(c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		c.config, c.configErr = cfg, err
	})
	return c.config, c.configErr
}

// configValue is ensureConfig for callers that already passed the
// PersistentPreRunE load.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// resolvedLogLevel prefers --log-level over [logging] level.
func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	switch {
	case strings.TrimSpace(c.logLevel) != "":
		return strings.TrimSpace(c.logLevel)
	case cfg != nil:
		return cfg.Logging.Level
	}
	return "info"
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	socket := cfg.SocketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("daemon is not running (no socket at %s); start it with `screensolve start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("daemon socket %s refused the connection; it may have crashed, try `screensolve restart`", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

// shouldSkipConfig reports whether cmd or an ancestor is annotated with
// skipConfigLoad.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
