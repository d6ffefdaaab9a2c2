package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:   "screensolve",
		Short: "Capture the active window, solve what is on it, show the answer",
		Long: `screensolve captures the window in front of you, sends it to a vision
solver, and shows the answer with its confidence in an overlay.

Start the daemon with "screensolve start", then bind "screensolve trigger"
to a hotkey.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Path to config.toml (default: ~/.config/screensolve/config.toml)")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Override [logging] level: debug, info, warn or error")

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newDaemonRunCommand(ctx),
		newTriggerCommand(ctx),
		newDismissCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
		newSolveCommand(ctx),
		newServeCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
