package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "price-research",
	Short: "Price research and IN 65/2021 compliance for public procurement",
	Long:  "Collects price observations, estimates reference prices with outlier filtering, checks IN SEGES/ME 65/2021 compliance and generates the technical note.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
