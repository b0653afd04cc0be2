package cmd

import (
	"fmt"
	"log"
	"os"

	"portfolio-tracker/config"
	"portfolio-tracker/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "portfolio-tracker",
	Short: "Track stock purchases, sales and live profit and loss",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	rootCmd.AddCommand(serveCmd, migrateCmd, symbolsCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing portfolio-tracker: %s\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger shared by every
// subcommand.
func bootstrap() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg, appLogger
}
