package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - authentication security core tooling",
		Long: `authcore manages the storage schema and signing keys used by the
authentication engine, and can replay a login scenario against a local
Redis to show rate limiting, lockout and password reset behaviour.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "YAML config file path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("redis-addr", "", "Redis address; empty starts an in-process miniredis")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewSimulateCmd())

	return cmd
}
