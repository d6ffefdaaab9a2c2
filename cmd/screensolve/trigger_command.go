package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"screensolve/internal/ipc"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "trigger [command]",
		Short: "Capture the active window and solve it",
		Long: "Sends a command to the daemon. Without an argument the configured trigger\n" +
			"command (capture-solve by default) is used; other commands are ignored.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := ""
			if len(args) == 1 {
				command = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger(command, wait)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if resp.Busy {
					return errors.New(resp.Message)
				}
				printTriggerResult(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the run to finish and print its outcome")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}

func printTriggerResult(out io.Writer, resp *ipc.TriggerResponse) {
	run := resp.Run
	if run == nil {
		fmt.Fprintln(out, "Run started")
		return
	}
	switch run.Outcome {
	case "result":
		fmt.Fprintf(out, "Answer: %s\n", run.Answer)
		fmt.Fprintf(out, "Confidence: %d%%\n", int(run.Confidence*100+0.5))
		if run.DeliveryError != "" {
			fmt.Fprintf(out, "Overlay not shown: %s\n", run.DeliveryError)
		}
	case "failure":
		fmt.Fprintf(out, "Failed: %s\n", run.Message)
	case "no_surface":
		fmt.Fprintln(out, "No active window to capture")
	default:
		fmt.Fprintf(out, "Command ignored (%s)\n", titleCase(run.Outcome))
	}
}
