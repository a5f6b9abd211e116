package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scoutbase/curator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Startup curation service",
	Long:  "Curates startups discovered by automated feeds into a vetted dataset: directory queries, bulk approve/reject with an audit trail, and idempotent enrichment-backed imports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
