package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "account-service",
	Short: "User accounts, sessions and notification delivery",
	Long: `account-service runs the account API and its notification worker.

  serve    HTTP API: signup, login, email verification, password recovery
  worker   queue consumer delivering emails and push notifications
  migrate  create or update the database schema and exit`,
	Version:      constants.AppVersion,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newMigrateCmd())
}

func main() {
	// No subcommand runs the API.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
