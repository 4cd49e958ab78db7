// Command comanda-cli is a command line interface for the realtime order
// service's HTTP API: authentication, chat, voucher validation,
// notifications and live event streaming.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/comandago/comanda/pkg/httpclient"
)

var (
	// Global flags
	serverURL string
	userID    string
	roles     []string
	token     string
	timeout   time.Duration

	// Global client instance
	client *httpclient.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "comanda-cli",
		Short: "Command line interface for the comanda realtime service",
		Long: `comanda-cli talks to the comanda HTTP API. It provides commands for
authentication, order chat, voucher validation, notifications and
real-time event streaming.`,
		PersistentPreRunE: initializeClient,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Service URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user-id", "", "User ID for authentication")
	rootCmd.PersistentFlags().StringSliceVar(&roles, "role", nil, "Role tags for authentication (repeatable)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT token (if already authenticated)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newSendMessageCommand())
	rootCmd.AddCommand(newMessagesCommand())
	rootCmd.AddCommand(newVouchersCommand())
	rootCmd.AddCommand(newApproveCommand())
	rootCmd.AddCommand(newRejectCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newNotificationsCommand())
	rootCmd.AddCommand(newStreamCommand())
	rootCmd.AddCommand(newHealthCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initializeClient sets up the HTTP client from the global flags.
func initializeClient(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	config := httpclient.Config{
		ServerURL: serverURL,
		UserID:    userID,
		Roles:     roles,
		Timeout:   timeout,
	}

	var err error
	client, err = httpclient.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if token != "" {
		client.SetToken(token)
	}
	return nil
}

// requireAuthentication authenticates with --user-id when no token was
// provided, so individual commands can just call the API.
func requireAuthentication(cmd *cobra.Command) error {
	if client.IsAuthenticated() {
		return nil
	}
	if userID == "" {
		return fmt.Errorf("not authenticated - provide --token or --user-id")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	return client.Authenticate(ctx)
}

// commandContext derives a per-request context honoring the --timeout flag.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}
