package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"score", "profiles", "monitor"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "partrank", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"source", "input", "profile", "boost-profile", "limit", "sample", "categories", "format", "output", "save"} {
		flag := scoreCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "score should have --%s flag", flagName)
	}

	flag := scoreCmd.Flags().Lookup("source")
	require.NotNil(t, flag)
	assert.Equal(t, "warehouse", flag.DefValue)

	flag = scoreCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "table", flag.DefValue)
}

func TestProfilesCommand_HasSubcommands(t *testing.T) {
	cmds := profilesCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "validate"} {
		assert.True(t, names[name], "profiles should have subcommand %q", name)
	}
}

func TestMonitorCommand_Flags(t *testing.T) {
	flag := monitorCmd.Flags().Lookup("watch")
	require.NotNil(t, flag, "monitor should have --watch flag")
	assert.Equal(t, "false", flag.DefValue)
}
