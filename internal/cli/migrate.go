package cli

import (
	"fmt"

	"resumeboost/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  "Apply the embedded SQL migrations to the configured Postgres database.",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	logger.Info("Running database migrations",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name)

	if err := database.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed")
	return nil
}
