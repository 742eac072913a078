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

	for _, name := range []string{"enrich", "dedupe", "dealers", "migrate", "runs", "import"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lead-resolver", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDealersCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range dealersCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["seed"])
	assert.True(t, names["list"])
}

func TestEnrichCommand_Flags(t *testing.T) {
	flag := enrichCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestDedupeCommand_Flags(t *testing.T) {
	require.NotNil(t, dedupeCmd.Flags().Lookup("batch"))
	fields := dedupeCmd.Flags().Lookup("fields")
	require.NotNil(t, fields)
	assert.Equal(t, "[plate,chassis,phone,name]", fields.DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"one"}, {"two", "three"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "three")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abcd1234", truncateID("abcd1234-5678"))
	assert.Equal(t, "abc", truncateID("abc"))
}
