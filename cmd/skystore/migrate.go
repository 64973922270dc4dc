package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ameyrk/skystore/config"
	"github.com/ameyrk/skystore/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create the users and file_records tables if they do not exist,
then validate the schema against the expected structure.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = true

	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database migration complete", "type", dbCfg.Type)
	return nil
}
