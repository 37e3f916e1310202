package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/price-research/internal/advisory"
	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/report"
)

var adviseCmd = &cobra.Command{
	Use:   "advise FILE",
	Short: "Ask the LLM for an advisory opinion on a price collection",
	Long: `Sends the description and observations of a YAML evaluation file to
the configured Anthropic model and prints its opinion. The opinion is
advisory and never replaces the deterministic evaluation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("advise"); err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		in, err := loadEvaluationFile(args[0], time.Now().UTC())
		if err != nil {
			return err
		}

		op, err := newAdvisor().Advise(cmd.Context(), model.EvaluationInput{
			Description:  in.Description,
			Observations: in.Observations,
		})
		if errors.Is(err, advisory.ErrDisabled) {
			return eris.Wrap(err, "enable advisory.enabled in the config")
		}
		if err != nil {
			return err
		}
		return printOpinion(cmd.OutOrStdout(), op, asJSON)
	},
}

func init() {
	adviseCmd.Flags().Bool("json", false, "print the opinion as JSON")
	rootCmd.AddCommand(adviseCmd)
}

func printOpinion(w io.Writer, op *advisory.Opinion, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(op)
	}

	fmt.Fprintf(w, "Advisory opinion (%s, not authoritative)\n\n", op.Model)
	fmt.Fprintf(w, "Estimated cost: %s\n\n", report.FormatBRL(op.EstimatedCost))
	if len(op.ComplianceIssues) == 0 {
		fmt.Fprintln(w, "Compliance: no issues raised.")
	} else {
		fmt.Fprintln(w, "Compliance issues:")
		for _, issue := range op.ComplianceIssues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	if op.CalculationDetails != "" {
		fmt.Fprintf(w, "\n%s\n", op.CalculationDetails)
	}
	return nil
}
