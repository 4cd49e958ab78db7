package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comandago/comanda/pkg/httpclient"
)

func newStreamCommand() *cobra.Command {
	var typeFilter string

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream realtime events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			stream, err := client.Stream(ctx, httpclient.StreamConfig{})
			if err != nil {
				return err
			}
			defer stream.Close()

			fmt.Fprintln(os.Stderr, "Streaming events (Ctrl-C to stop)...")
			for {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-stream.Errors():
					if ok {
						fmt.Fprintf(os.Stderr, "stream: %v\n", err)
					}
				case evt, ok := <-stream.Events():
					if !ok {
						return nil
					}
					if typeFilter != "" && evt.Type != typeFilter {
						continue
					}
					payload, err := json.Marshal(evt.Data)
					if err != nil {
						payload = []byte("{}")
					}
					fmt.Printf("%s %s %s\n",
						evt.Timestamp.Format("15:04:05"), evt.Type, payload)
				}
			}
		},
	}

	cmd.Flags().StringVar(&typeFilter, "type", "", "Only print events of this type")
	return cmd
}
