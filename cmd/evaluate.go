package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/price-research/internal/config"
	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/pricing"
	"github.com/sells-group/price-research/internal/report"
	"github.com/sells-group/price-research/internal/validate"
)

// evaluationFile is the YAML document read by evaluate and advise.
type evaluationFile struct {
	Description       string                 `yaml:"description"`
	Method            model.EstimationMethod `yaml:"method"`
	AdjustmentPercent decimal.Decimal        `yaml:"adjustment_percent"`
	Deselected        []string               `yaml:"deselected"`
	Thresholds        *model.Thresholds      `yaml:"thresholds"`
	Observations      []model.Observation    `yaml:"observations"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate FILE",
	Short: "Estimate a reference price from a YAML price collection",
	Long: `Reads a YAML file with a description and price observations, filters
outliers and stale prices, estimates the reference price and lists the
IN 65/2021 compliance issues. Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}
		asOfFlag, _ := cmd.Flags().GetString("as-of")
		asJSON, _ := cmd.Flags().GetBool("json")

		asOf := time.Now().UTC()
		if asOfFlag != "" {
			d, err := model.ParseDate(asOfFlag)
			if err != nil {
				return err
			}
			asOf = d.Time()
		}

		in, err := loadEvaluationFile(args[0], asOf)
		if err != nil {
			return err
		}
		return runEvaluate(cmd.OutOrStdout(), in, cfg.Pricing, asOf, asJSON)
	},
}

func init() {
	evaluateCmd.Flags().String("as-of", "", "reference date for the staleness rule (YYYY-MM-DD, default today)")
	evaluateCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

// loadEvaluationFile parses and validates an evaluation file. Observations
// without an ID are numbered obs-1, obs-2, ...
func loadEvaluationFile(path string, today time.Time) (*evaluationFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var in evaluationFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}

	for i := range in.Observations {
		if in.Observations[i].ID == "" {
			in.Observations[i].ID = fmt.Sprintf("obs-%d", i+1)
		}
	}
	if err := validate.Observations(in.Observations, today); err != nil {
		return nil, err
	}
	return &in, nil
}

func runEvaluate(w io.Writer, in *evaluationFile, pc config.PricingConfig, asOf time.Time, asJSON bool) error {
	method := in.Method
	if method == "" {
		method = pc.Method()
	}
	th := pc.Thresholds()
	if in.Thresholds != nil {
		th = *in.Thresholds
	}

	result, err := pricing.Evaluate(model.EvaluationInput{
		Description:  in.Description,
		Observations: in.Observations,
		Deselected:   in.Deselected,
	}, method, in.AdjustmentPercent, pricing.WithThresholds(th), pricing.AsOf(asOf))
	if errors.Is(err, pricing.ErrInsufficientData) {
		fmt.Fprintln(w, "Cannot estimate: no valid price observation remains.")
		return err
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	formatEvaluation(w, in.Observations, result)
	return nil
}

func formatEvaluation(w io.Writer, observations []model.Observation, r *model.EvaluationResult) {
	valid := make(map[string]bool, len(r.ValidObservationIDs))
	for _, id := range r.ValidObservationIDs {
		valid[id] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Source", "Label", "Date", "Price", "Status"})
	for _, o := range observations {
		status := "valid"
		if reason, ok := r.ExcludedObservations[o.ID]; ok {
			status = "excluded: " + reason
		} else if !valid[o.ID] {
			status = "-"
		}
		t.AppendRow(table.Row{o.ID, o.SourceType, o.SourceLabel, o.CollectedDate, report.FormatBRL(o.Price), status})
	}
	t.Render()

	fmt.Fprintf(w, "\nMethod:          %s (adjustment %s%%)\n", r.Method, r.AdjustmentPercent)
	fmt.Fprintf(w, "Mean:            %s\n", report.FormatBRL(r.Mean))
	fmt.Fprintf(w, "Median:          %s\n", report.FormatBRL(r.Median))
	fmt.Fprintf(w, "Lowest:          %s\n", report.FormatBRL(r.Lowest))
	fmt.Fprintf(w, "Estimated price: %s\n\n", report.FormatBRL(r.EstimatedPrice))

	if r.Compliant() {
		fmt.Fprintln(w, "Compliance: no issues found.")
	} else {
		fmt.Fprintln(w, "Compliance issues:")
		for _, issue := range r.ComplianceIssues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	fmt.Fprintf(w, "\n%s\n", r.CalculationDetails)
}
