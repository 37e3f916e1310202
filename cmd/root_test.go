//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "evaluate", "advise", "catalog", "sweep", "report"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "price-research", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, serveCmd.Flags().Lookup("no-sweep"))
}

func TestEvaluateCommand_Flags(t *testing.T) {
	require.NotNil(t, evaluateCmd.Flags().Lookup("as-of"))
	flag := evaluateCmd.Flags().Lookup("json")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestCatalogCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range catalogCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["import"])
	assert.True(t, names["search"])

	for _, flagName := range []string{"encoding", "sheet", "batch-size"} {
		assert.NotNil(t, catalogImportCmd.Flags().Lookup(flagName), "catalog import should have --%s flag", flagName)
	}
	limit := catalogSearchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "20", limit.DefValue)
}

func TestReportCommand_Flags(t *testing.T) {
	format := reportCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	out := reportCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
	assert.NotNil(t, reportCmd.Flags().Lookup("by"))
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://dados.gov.br/catmat.csv"))
	assert.True(t, isURL("http://localhost/catmat.xlsx"))
	assert.False(t, isURL("catmat.csv"))
	assert.False(t, isURL("/tmp/https.csv"))
}
