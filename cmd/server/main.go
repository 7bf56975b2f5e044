package main

import (
	"fmt"
	"os"

	"cashregister/internal/config"
	"cashregister/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "cashregister",
	Short: "Cash register lifecycle and payment reconciliation service",
	Long: `cashregister runs the register API: one open session at a time, an
append-only ledger of payments and a blind-count reconciliation at close.

Configuration is read from the environment (and an optional .env file).`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newSeedUserCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration, configures the global logger and opens the
// database for the configured driver.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	infra.SetupLogger(cfg.Env, cfg.LogLevel)

	dsn := cfg.DSN()
	if cfg.DBDriver == infra.DriverSQLite {
		dsn = infra.SQLiteDSN(cfg.SQLitePath)
	}
	db, err := infra.NewDatabase(cfg.DBDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	log.Debug().Str("driver", cfg.DBDriver).Msg("database connected")
	return cfg, db, nil
}
