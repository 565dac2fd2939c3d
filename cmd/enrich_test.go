package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-finder/internal/config"
	"github.com/sells-group/cnpj-finder/internal/model"
)

func newFlagCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "enrich"}
	cmd.Flags().StringSliceVar(&enrichSites, "site", nil, "")
	cmd.Flags().StringVar(&enrichDefaultCity, "default-city", "", "")
	cmd.Flags().StringVar(&enrichDefaultState, "default-state", "", "")
	cmd.Flags().Float64Var(&enrichDelay, "delay", 0, "")
	cmd.Flags().IntVar(&enrichResultsPerSite, "results-per-site", 0, "")
	cmd.Flags().IntVar(&enrichWorkers, "workers", 1, "")
	return cmd
}

func TestApplyEnrichFlags_OnlyChanged(t *testing.T) {
	cmd := newFlagCmd(t)
	require.NoError(t, cmd.Flags().Parse([]string{"--site", "cnpj.biz", "--site", "cnpj.info", "--default-state", "RJ", "--delay", "0.25"}))

	c := &config.Config{}
	c.Enrich.DefaultCity = "Campinas"
	c.Enrich.DefaultState = "SP"
	c.Enrich.ResultsPerSite = 3
	c.Enrich.Workers = 2
	c.Enrich.CandidateSites = []string{"econodata.com.br"}

	applyEnrichFlags(cmd, c)

	assert.Equal(t, []string{"cnpj.biz", "cnpj.info"}, c.Enrich.CandidateSites)
	assert.Equal(t, "RJ", c.Enrich.DefaultState)
	assert.InDelta(t, 0.25, c.Enrich.DelaySeconds, 0.0001)
	// Untouched flags keep config values.
	assert.Equal(t, "Campinas", c.Enrich.DefaultCity)
	assert.Equal(t, 3, c.Enrich.ResultsPerSite)
	assert.Equal(t, 2, c.Enrich.Workers)
}

func TestPrintRecordsJSON(t *testing.T) {
	var buf bytes.Buffer
	recs := []model.InputRecord{{Company: "Acme", City: "Campinas", StateCode: "SP"}}
	require.NoError(t, printRecordsJSON(&buf, recs))

	var got []model.InputRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, recs, got)
}

func TestCLIPrincipal(t *testing.T) {
	p := cliPrincipal()
	assert.False(t, p.IsZero())
	assert.NotEmpty(t, p.Subject)
	assert.Equal(t, "cli", p.Source)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond+300*time.Microsecond))
	assert.Equal(t, "2.5s", formatDuration(2*time.Second+480*time.Millisecond))
}
