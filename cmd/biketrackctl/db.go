package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDBCmd(tk toolkit) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database",
		Long:  `Manage the database schema and migrations.`,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create and/or upgrade the database schema",
		Long: `Create and/or upgrade the database schema.

Example:
  biketrackctl db migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutCtx(cmd)
			defer cancel()
			m, err := tk.openMigrator(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			changed, err := m.Up()
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run - database is up to date")
				return nil
			}
			status, err := m.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version: %d\n", status.Version)
			return nil
		},
	}

	downCmd := &cobra.Command{
		Use:   "down [steps]",
		Short: "Rollback database migrations",
		Long: `Rollback database migrations.

Example:
  biketrackctl db down      # Rollback 1 migration
  biketrackctl db down 3    # Rollback 3 migrations`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return errorf("steps must be a positive number, got %q", args[0])
				}
				steps = n
			}
			ctx, cancel := timeoutCtx(cmd)
			defer cancel()
			m, err := tk.openMigrator(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := m.Down(steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutCtx(cmd)
			defer cancel()
			m, err := tk.openMigrator(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			status, err := m.Status()
			if err != nil {
				return err
			}
			if !status.Applied {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty: %v)\n", status.Version, status.Dirty)
			return nil
		},
	}

	dbCmd.AddCommand(migrateCmd, downCmd, statusCmd)
	return dbCmd
}
