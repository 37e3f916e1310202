package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/report"
	"github.com/sells-group/price-research/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report RESEARCH_ID",
	Short: "Generate the technical note of an evaluated research",
	Long: `Records a new report for the research and renders the technical note
from its stored evaluation, as plain text or printable HTML.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		by, _ := cmd.Flags().GetString("by")
		if format != "text" && format != "html" {
			return eris.Errorf("unknown format %q (want text or html)", format)
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w := cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "create %s", out)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return runReport(cmd.Context(), st, args[0], by, format, w)
	},
}

func init() {
	reportCmd.Flags().String("format", "text", "output format: text or html")
	reportCmd.Flags().StringP("out", "o", "", "write to file instead of stdout")
	reportCmd.Flags().String("by", "", "name recorded as the report author (default responsible agent)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(ctx context.Context, st store.Store, researchID, by, format string, w io.Writer) error {
	res, err := st.GetResearch(ctx, researchID)
	if err != nil {
		return err
	}
	ev, err := st.GetEvaluation(ctx, researchID)
	if errors.Is(err, store.ErrNotFound) {
		return report.ErrNotEvaluated
	}
	if err != nil {
		return err
	}

	rep := &model.Report{
		ResearchID:          res.ID,
		ResearchDescription: res.Description,
		GeneratedBy:         strings.TrimSpace(by),
	}
	if rep.GeneratedBy == "" {
		rep.GeneratedBy = res.ResponsibleAgent
	}
	if err := st.CreateReport(ctx, rep); err != nil {
		return err
	}
	zap.L().Info("report: generated", zap.String("report_id", rep.ID), zap.String("research_id", res.ID))

	doc := report.Document{Report: *rep, Research: *res, Evaluation: ev}
	if format == "html" {
		return report.HTML(w, doc)
	}
	return report.Text(w, doc)
}
