package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/price-research/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-evaluate open researches once",
	Long: `Re-runs the evaluation of every in-progress or pending-review research
that has a stored evaluation, so stale prices drop out as time passes.
serve runs the same pass on the configured schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sweep"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := sweep.New(st, sweep.Config{
			Schedule:   cfg.Sweep.Schedule,
			Thresholds: cfg.Pricing.Thresholds(),
		}).RunOnce(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checked %d researches: %d refreshed, %d changed, %d failed.\n",
			res.Checked, res.Refreshed, res.Changed, res.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
