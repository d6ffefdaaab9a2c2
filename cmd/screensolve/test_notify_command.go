package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screensolve/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to send a test push notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), notificationResult(resp))
				return nil
			})
		},
	}
}

func notificationResult(resp *ipc.TestNotificationResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.Sent {
		return "Test notification sent"
	}
	return "Notifications are disabled; nothing was sent"
}
