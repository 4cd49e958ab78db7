package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			health, err := client.GetHealth(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Status: %s\n", health.Status)
			for name, value := range health.Components {
				fmt.Printf("  %s: %v\n", name, value)
			}
			return nil
		},
	}
}
