package main

import (
	"fmt"

	"github.com/Veraticus/toro/internal/cli"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply any pending database migrations to bring the schema up to date.`,
		RunE:  runMigrate,
	}

	cmd.Flags().Bool("status", false, "show the current schema version without migrating")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if status, _ := cmd.Flags().GetBool("status"); status {
		current, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Database: %s\n", appConfig.Database.Path)
		cmd.Printf("Schema version: %d (latest %d)\n", current, storage.ExpectedSchemaVersion)
		if current < storage.ExpectedSchemaVersion {
			cmd.Println(cli.FormatWarning("Pending migrations, run 'toro migrate'"))
		}
		return nil
	}

	cmd.Println(cli.FormatInfo("Running database migrations..."))

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	cmd.Println(cli.FormatSuccess("Migrations completed successfully"))
	return nil
}
