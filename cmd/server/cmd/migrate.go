package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/favorites/internal/storage"
	"github.com/Togather-Foundation/favorites/internal/storage/postgres"
	"github.com/Togather-Foundation/favorites/internal/storage/sqlite"
)

func newMigrateCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back list store schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			switch cfg.Storage.Driver {
			case storage.DriverPostgres:
				if err := postgres.MigrateUp(cfg.Storage.DatabaseURL); err != nil {
					return err
				}
			case storage.DriverSQLite:
				store, err := sqlite.Open(cfg.Storage.SQLitePath)
				if err != nil {
					return err
				}
				if err := store.Close(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("driver %q has no schema", cfg.Storage.Driver)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied\n", cfg.Storage.Driver)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (postgres only, default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.Storage.Driver != storage.DriverPostgres {
				return fmt.Errorf("migrate down is only supported for postgres, not %q", cfg.Storage.Driver)
			}
			if err := postgres.MigrateDown(cfg.Storage.DatabaseURL, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	})
	return cmd
}
