package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"screensolve/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or create the configuration file"}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := writeSampleConfig(targetPath, overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Point [solver] url at your solve API, or run `screensolve serve` locally.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default: the standard config location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// writeSampleConfig resolves path (or the default location), refuses to
// clobber an existing file unless overwrite is set, and writes the sample.
func writeSampleConfig(path string, overwrite bool) (string, error) {
	resolve := config.DefaultConfigPath
	if p := strings.TrimSpace(path); p != "" {
		resolve = func() (string, error) { return config.ExpandPath(p) }
	}
	target, err := resolve()
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}

	_, statErr := os.Stat(target)
	switch {
	case statErr == nil && !overwrite:
		return "", fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
	case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
		return "", fmt.Errorf("stat %s: %w", target, statErr)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := config.CreateSample(target); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Solver: %s\n", cfg.Solver.URL)
			fmt.Fprintf(out, "Trigger command: %s\n", cfg.Trigger.Command)
			fmt.Fprintf(out, "Overlay viewer: %s\n", yesNo(cfg.Overlay.ViewerEnabled))
			if err := cfg.ServerReady(); err != nil {
				fmt.Fprintf(out, "Solve API: not ready (%v)\n", err)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
