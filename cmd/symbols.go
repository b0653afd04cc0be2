package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"portfolio-tracker/database"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"
	"portfolio-tracker/symbols"

	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Manage the symbol directory",
}

var symbolsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the equity listing and replace the stored directory",
	Run:   runSymbolsSync,
}

func init() {
	symbolsCmd.AddCommand(symbolsSyncCmd)
}

func runSymbolsSync(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := bootstrap()
	defer func() { _ = appLogger.Sync() }()

	db, err := database.Open(cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	syncer := symbols.NewSyncer(cfg.Symbols, repository.NewSymbolRepository(db, appLogger), appLogger)
	if _, err := syncer.Sync(ctx); err != nil {
		appLogger.Fatal("Symbol sync failed", logger.ErrorField(err))
	}
}
