package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print a token",
		Long: `Authenticate with the service using --user-id and --role.
Prints a JWT token that can be reused with --token on later invocations.`,
		RunE: runLogin,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	if userID == "" {
		return fmt.Errorf("--user-id is required")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	fmt.Printf("Authenticated as %s\n", userID)
	fmt.Printf("Token: %s\n", client.GetToken())
	fmt.Printf("\nReuse it with:\n  comanda-cli --token \"%s\" <command>\n", client.GetToken())
	return nil
}
