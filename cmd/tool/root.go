package main

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the notes-auth tool.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "notes-auth-tool",
		Short:         "Operator tooling for the notes auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
