package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotificationsCommand() *cobra.Command {
	var markRead string

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List unread notifications, or mark one read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			if markRead != "" {
				if err := client.MarkNotificationRead(ctx, markRead); err != nil {
					return err
				}
				fmt.Printf("Marked %s read\n", markRead)
				return nil
			}

			items, err := client.UnreadNotifications(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No unread notifications.")
				return nil
			}
			for _, n := range items {
				fmt.Printf("%s [%s] %s: %s\n", n.ID, n.Category, n.Title, n.Body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&markRead, "mark-read", "", "Notification ID to mark read")
	return cmd
}
