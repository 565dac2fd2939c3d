package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-finder/internal/config"
	"github.com/sells-group/cnpj-finder/internal/model"
	"github.com/sells-group/cnpj-finder/internal/pipeline"
	"github.com/sells-group/cnpj-finder/internal/sheet"
)

var (
	enrichInput          string
	enrichOutput         string
	enrichSites          []string
	enrichDefaultCity    string
	enrichDefaultState   string
	enrichDelay          float64
	enrichResultsPerSite int
	enrichWorkers        int
	enrichDryRun         bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Look up CNPJ identifiers for every row of a spreadsheet",
	Long: `Reads an XLSX or CSV file with an EMPRESA column (CIDADE and UF optional),
searches each candidate site for every company and writes the annotated rows
to the "resultado" sheet of the output file.

Examples:
  # Parse the input only
  cnpj-finder enrich --input empresas.xlsx --dry-run

  # Full run with a custom site list
  cnpj-finder enrich --input empresas.xlsx --output resultado.xlsx --site cnpj.biz --site econodata.com.br`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		records, err := sheet.Read(enrichInput)
		if err != nil {
			return eris.Wrap(err, "enrich: read input")
		}
		zap.L().Info("parsed input", zap.String("path", enrichInput), zap.Int("records", len(records)))

		if enrichDryRun {
			return printRecordsJSON(cmd.OutOrStdout(), records)
		}

		applyEnrichFlags(cmd, cfg)
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		env := newSearchEnv(cfg)
		p, err := env.Pipeline(cfg.PipelineConfig())
		if err != nil {
			return eris.Wrap(err, "enrich: init pipeline")
		}

		out, summary, err := p.Run(ctx, cliPrincipal(), records, pipeline.LogObserver{Every: 10})
		if err != nil {
			return eris.Wrap(err, "enrich: run")
		}

		if err := sheet.Write(enrichOutput, out); err != nil {
			return eris.Wrap(err, "enrich: write output")
		}
		zap.L().Info("output written", zap.String("path", enrichOutput))

		fmt.Fprintln(cmd.OutOrStdout(), summaryTable(summary))
		return nil
	},
}

// applyEnrichFlags overrides config values with the flags set on this run.
func applyEnrichFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("site") {
		c.Enrich.CandidateSites = enrichSites
	}
	if flags.Changed("default-city") {
		c.Enrich.DefaultCity = enrichDefaultCity
	}
	if flags.Changed("default-state") {
		c.Enrich.DefaultState = enrichDefaultState
	}
	if flags.Changed("delay") {
		c.Enrich.DelaySeconds = enrichDelay
	}
	if flags.Changed("results-per-site") {
		c.Enrich.ResultsPerSite = enrichResultsPerSite
	}
	if flags.Changed("workers") {
		c.Enrich.Workers = enrichWorkers
	}
}

// printRecordsJSON prints parsed records as indented JSON.
func printRecordsJSON(w io.Writer, records []model.InputRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// formatDuration rounds run durations for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "input spreadsheet, .xlsx or .csv (required)")
	enrichCmd.Flags().StringVar(&enrichOutput, "output", "resultado.xlsx", "output spreadsheet, .xlsx or .csv")
	enrichCmd.Flags().StringSliceVar(&enrichSites, "site", nil, "candidate site, repeatable (default from config)")
	enrichCmd.Flags().StringVar(&enrichDefaultCity, "default-city", "", "city used when a row has none")
	enrichCmd.Flags().StringVar(&enrichDefaultState, "default-state", "", "state code used when a row has none")
	enrichCmd.Flags().Float64Var(&enrichDelay, "delay", 0, "seconds to wait between searched rows")
	enrichCmd.Flags().IntVar(&enrichResultsPerSite, "results-per-site", 0, "search hits inspected per site")
	enrichCmd.Flags().IntVar(&enrichWorkers, "workers", 1, "rows processed concurrently (1 = sequential)")
	enrichCmd.Flags().BoolVar(&enrichDryRun, "dry-run", false, "parse the input and print records, skip searches")
	_ = enrichCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(enrichCmd)
}
