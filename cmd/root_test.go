package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"enrich", "serve", "sites"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "cnpj-finder", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestEnrichCommand_Flags(t *testing.T) {
	input := enrichCmd.Flags().Lookup("input")
	require.NotNil(t, input, "enrich command should have --input flag")

	output := enrichCmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "resultado.xlsx", output.DefValue)

	workers := enrichCmd.Flags().Lookup("workers")
	require.NotNil(t, workers)
	assert.Equal(t, "1", workers.DefValue)

	for _, name := range []string{"site", "default-city", "default-state", "delay", "results-per-site", "dry-run"} {
		assert.NotNil(t, enrichCmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
