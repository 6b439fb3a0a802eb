package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carhist/config"
	"carhist/scraper/wallapop"
	"carhist/services"
	"carhist/storage"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes the configured sellers and writes today's partition sheet.",
	Long: `Scrapes every advert of the seller group selected by VENDOR_GROUP
(all sellers when unset, a single seller when TEST_MODE=true) and writes
them to the partition sheet "<PARTITION_PREFIX>[-J<group>] dd/mm/yy".
A raw CSV copy is written to RAW_CSV_PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sellers := config.Sellers(cfg.TestMode, cfg.VendorGroup)
		logger.Info("=== carhist scrape starting ===")
		logger.Info("Sellers: %d | test mode: %v | group: %d | concurrency: %d | rate: %dms",
			len(sellers), cfg.TestMode, cfg.VendorGroup, cfg.MaxConcurrency, cfg.RateLimitMs)

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		raw, err := wallapop.New(cfg, logger).Scrape(cmd.Context(), sellers)
		if err != nil {
			return err
		}
		logger.Info("Scraped %d raw listings", len(raw))

		dump, err := storage.NewRawCSVWriter(cfg.RawCSVPath)
		if err != nil {
			logger.Error("Failed to create raw CSV: %v", err)
		} else {
			if err := dump.WriteRaw(raw); err != nil {
				logger.Error("Raw CSV write failed: %v", err)
			} else {
				logger.Info("Raw listings saved to %s", cfg.RawCSVPath)
			}
			_ = dump.Close()
		}

		job := cfg.VendorGroup
		if cfg.TestMode {
			job = 0
		}
		sheet := services.PartitionName(cfg.PartitionPrefix, job, time.Now())
		rows := make([][]any, 0, len(raw))
		for _, r := range raw {
			rows = append(rows, services.PartitionRow(r))
		}
		if err := store.Write(cmd.Context(), sheet, services.PartitionHeader, rows); err != nil {
			return fmt.Errorf("write partition %q: %w", sheet, err)
		}
		logger.Info("Partition %q written: %d listings", sheet, len(rows))
		return nil
	},
}
