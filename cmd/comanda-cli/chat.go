package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSendMessageCommand() *cobra.Command {
	var msgType string

	cmd := &cobra.Command{
		Use:   "send-message <order-id> <body>",
		Short: "Send a chat message on an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			resp, err := client.SendMessage(ctx, orderID, args[1], msgType)
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("send refused: %s", resp.Message)
			}

			fmt.Printf("Sent message %s (status %s)\n", resp.MessageID, resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&msgType, "type", "", "Message type (default \"text\")")
	return cmd
}

func newMessagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <order-id>",
		Short: "List an order's chat history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			msgs, err := client.ListMessages(ctx, orderID)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("No messages.")
				return nil
			}

			for _, m := range msgs {
				fmt.Printf("[%s] %s (%s): %s\n",
					m.CreatedAt.Format("15:04:05"), m.SenderID, m.Status, m.Body)
			}
			return nil
		},
	}
}
