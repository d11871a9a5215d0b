package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "resolve")
	assert.Contains(t, names, "match")
}

func TestMatchCommand_RequiresName(t *testing.T) {
	require.Error(t, matchCmd.Args(matchCmd, nil))
	require.NoError(t, matchCmd.Args(matchCmd, []string{"Ravulapalem"}))
}

func TestResolveCommand_Flags(t *testing.T) {
	for _, name := range []string{"commodity", "market", "district", "state", "date", "range", "question", "no-remote"} {
		assert.NotNil(t, resolveCmd.Flags().Lookup(name), name)
	}
}
