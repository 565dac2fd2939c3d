package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/cnpj-finder/internal/pipeline"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Show the candidate sites and search settings in effect",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := newSearchEnv(cfg).Pipeline(cfg.PipelineConfig())
		if err != nil {
			return err
		}
		printSites(cmd.OutOrStdout(), p.Config(), cfg.Search.Key != "")
		return nil
	},
}

// printSites renders the validated pipeline settings, so blank sites and
// defaulted workers show as they will run.
func printSites(w io.Writer, pc pipeline.Config, keySet bool) {
	rows := make([][]string, 0, len(pc.CandidateSites))
	for i, s := range pc.CandidateSites {
		rows = append(rows, []string{strconv.Itoa(i + 1), s})
	}
	fmt.Fprintln(w, renderTable([]string{"#", "Site"}, rows, []columnAlignment{alignRight, alignLeft}))

	settings := [][]string{
		{"query suffix", pc.QuerySuffix},
		{"results per site", strconv.Itoa(pc.ResultsPerSite)},
		{"default state", pc.DefaultState},
		{"default city", pc.DefaultCity},
		{"delay", pc.Delay.String()},
		{"workers", strconv.Itoa(pc.Workers)},
		{"api key set", strconv.FormatBool(keySet)},
	}
	fmt.Fprintln(w, renderTable([]string{"Setting", "Value"}, settings, nil))
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}
