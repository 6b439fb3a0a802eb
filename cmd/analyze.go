package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carhist/services"
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Reconciles today's partitions into the price history.",
	Long: `Unifies every partition sheet of the run day, reconciles it against
the history sheet (HISTORY_SHEET) and writes the updated history plus the
per-seller statistics sheet. RUN_DATE=dd/mm/yyyy replays a given day.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := services.ParseReactivationPolicy(cfg.ReactivationPolicy)
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		analyzer := services.NewAnalyzer(store, services.AnalyzerConfig{
			HistorySheet:    cfg.HistorySheet,
			PartitionPrefix: cfg.PartitionPrefix,
			RunDate:         cfg.RunDate,
			PriceBounds:     services.PriceBounds{Min: cfg.PriceMin, Max: cfg.PriceMax},
			Policy:          policy,
			ReportPath:      cfg.ReportPath,
		}, logger)

		report, err := analyzer.Run(cmd.Context())
		if err != nil {
			return err
		}

		services.NewReportService(logger).Print(os.Stdout, report)
		return nil
	},
}
