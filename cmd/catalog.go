package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/price-research/internal/catalog"
	"github.com/sells-group/price-research/internal/fetcher"
	"github.com/sells-group/price-research/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the CATMAT material catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import PATH|URL",
	Short: "Import a CATMAT CSV or XLSX file",
	Long: `Imports codigo_catmat;descricao rows from a local file or an http(s)
URL. Existing codes are updated in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}
		ctx := cmd.Context()

		opts := catalog.Options{
			BatchSize:   cfg.Catalog.BatchSize,
			Concurrency: cfg.Catalog.Concurrency,
			Encoding:    cfg.Catalog.Encoding,
			Sheet:       cfg.Catalog.Sheet,
		}
		if cmd.Flags().Changed("encoding") {
			opts.Encoding, _ = cmd.Flags().GetString("encoding")
		}
		if cmd.Flags().Changed("sheet") {
			opts.Sheet, _ = cmd.Flags().GetString("sheet")
		}
		if cmd.Flags().Changed("batch-size") {
			opts.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var stats *catalog.Stats
		if src := args[0]; isURL(src) {
			f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: cfg.Catalog.UserAgent})
			stats, err = catalog.ImportURL(ctx, f, st, src, opts)
		} else {
			stats, err = catalog.Import(ctx, st, src, opts)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d rows (%d skipped) in %d batches, %s.\n",
			stats.Imported, stats.Rows, stats.Skipped, stats.Batches, stats.Elapsed.Round(time.Millisecond))
		return nil
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search catalog items by description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.SearchCatalog(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		formatCatalog(cmd.OutOrStdout(), items)
		return nil
	},
}

func init() {
	catalogImportCmd.Flags().String("encoding", "", "source encoding: latin1, windows-1252 or utf-8 (overrides config)")
	catalogImportCmd.Flags().String("sheet", "", "XLSX sheet name (default first sheet)")
	catalogImportCmd.Flags().Int("batch-size", 0, "rows per upsert batch (overrides config)")
	catalogSearchCmd.Flags().Int("limit", 20, "maximum results (at most 50)")

	catalogCmd.AddCommand(catalogImportCmd, catalogSearchCmd)
	rootCmd.AddCommand(catalogCmd)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func formatCatalog(w io.Writer, items []model.CatalogItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No catalog items found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Code", "Description"})
	for _, it := range items {
		t.AppendRow(table.Row{it.Code, it.Description})
	}
	t.Render()
}
