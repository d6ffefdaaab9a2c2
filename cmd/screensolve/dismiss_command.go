package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screensolve/internal/ipc"
)

func newDismissCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [surface]",
		Short: "Close the answer overlay (all surfaces when none is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			surface := ""
			if len(args) == 1 {
				surface = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Dismiss(surface)
				if err != nil {
					return err
				}
				switch resp.Dismissed {
				case 0:
					fmt.Fprintln(cmd.OutOrStdout(), "No overlays to dismiss")
				case 1:
					fmt.Fprintln(cmd.OutOrStdout(), "Dismissed 1 overlay")
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Dismissed %d overlays\n", resp.Dismissed)
				}
				return nil
			})
		},
	}
}
