package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/db/postgres"
)

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// swapped in tests
var newMigrator = func(dsn string) (migrator, error) {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply or roll back the embedded schema migrations against PostgreSQL.`,
	}
	cmd.PersistentFlags().StringVar(&dsn, "database-url", envOr("DB_ADDR", ""), "postgres URL (default $DB_ADDR)")

	withMigrator := func(fn func(cmd *cobra.Command, m migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				return errors.New("DB_ADDR or --database-url is required")
			}
			m, err := newMigrator(dsn)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(cmd, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
			return nil
		}),
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all data)",
		PreRunE: func(*cobra.Command, []string) error {
			if !yes {
				return errors.New("refusing to drop the schema without --yes")
			}
			return nil
		},
		RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back")
			return nil
		}),
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		}),
	})

	return cmd
}
