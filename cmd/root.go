package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carhist/config"
	"carhist/storage"
	"carhist/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "carhist",
	Short: "carhist tracks the price history of marketplace car listings.",
	Long: `carhist scrapes the adverts of a set of car dealers and keeps a
longitudinal price history per vehicle: one price column per run, with
new, sold and re-listed vehicles detected on every reconciliation.

Configuration is read from the environment (and a .env file).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger = utils.NewLoggerWithLevel(os.Stderr, cfg.LogLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openStore returns the sheet store selected by STORE_DRIVER.
func openStore(c *config.Config) (storage.SheetStore, error) {
	switch c.StoreDriver {
	case "", "csv":
		return storage.NewCSVStore(c.StoreDir)
	case "postgres", "mysql", "sqlite":
		return storage.NewSQLStore(c.StoreDriver, c.DSN())
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want csv, postgres, mysql or sqlite)", c.StoreDriver)
	}
}
