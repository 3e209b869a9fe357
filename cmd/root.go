package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datadojo/partrank/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "partrank",
	Short: "Priority scoring engine for electronic component inventory",
	Long:  "Loads part records from the warehouse or flat files, engineers availability and demand features, scores them against weighted profiles with boost rules, and persists ranked results.",
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
