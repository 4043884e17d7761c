package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"devflow/internal/config"
	"devflow/internal/storage/sqlstore"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "devflow",
		Short:         "DevFlow - sprint and task collaboration backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or TOML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config with the command's flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStore connects to the configured database and applies the schema.
func openStore(cfg *config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN, sqlstore.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}
