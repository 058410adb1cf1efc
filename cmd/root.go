package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "marcola",
	Short: "Local business prospecting pipeline",
	Long:  "Discovers local businesses via Google Places, scores and classifies them as leads, verifies marketing maturity on their websites, and sends WhatsApp outreach.",
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
