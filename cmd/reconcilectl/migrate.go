package main

import (
	"fmt"

	"github.com/zidane123-web/payment/config"
	pgStorage "github.com/zidane123-web/payment/internal/adapter/storage/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Long: `Applies the embedded goose migrations for the payments and audit_logs tables.

Examples:
  reconcilectl migrate
  reconcilectl migrate --status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate requires store.driver=%s, got %q", config.StoreDriverPostgres, cfg.Store.Driver)
			}

			var version int64
			if statusOnly {
				version, err = pgStorage.MigrationVersion(cmd.Context(), cfg.Database.DSN())
			} else {
				version, err = pgStorage.Migrate(cmd.Context(), cfg.Database.DSN(), log)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the current schema version without migrating")

	return cmd
}
