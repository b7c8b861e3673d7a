package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI2HU/compscout/internal/db/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the result store schema",
	Long:  `Apply the embedded schema migrations (SQLite) or indexes (MongoDB).`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), "🔄 Running database migrations...")

	// Connecting applies migrations and indexes
	store, err := openStore(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer closeStore(store)

	fmt.Fprintf(cmd.OutOrStdout(), "%s✅ Migrations completed successfully!%s\n", SuccessStyle, Reset)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore(context.Background(), cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	lite, ok := store.(*sqlite.SQLite)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s provider has no versioned schema\n", cfg.Database.Provider)
		return nil
	}

	version, dirty, err := lite.SchemaVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintln(cmd.OutOrStdout(), FormatLabelValue("Schema version:", fmt.Sprintf("%d (%s)", version, state)))
	return nil
}
