package cmd

import (
	"errors"

	"portfolio-tracker/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all available database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations("up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the last database migration",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations("down")
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

func runMigrations(direction string) {
	cfg, appLogger := bootstrap()
	defer func() { _ = appLogger.Sync() }()

	m, err := migrate.New(cfg.Migrations.Path, cfg.Database.URL())
	if err != nil {
		appLogger.Fatal("Failed to create migration instance", logger.ErrorField(err))
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			appLogger.Warn("Migration source error on close", logger.ErrorField(srcErr))
		}
		if dbErr != nil {
			appLogger.Warn("Migration database error on close", logger.ErrorField(dbErr))
		}
	}()

	if direction == "up" {
		err = m.Up()
	} else {
		err = m.Steps(-1)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		appLogger.Fatal("Migration failed", logger.ErrorField(err), logger.StringField("direction", direction))
	}

	appLogger.Info("Migrations applied", logger.StringField("direction", direction))
}
