package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "jobq", cmd.Use)

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["worker"], "should register the worker command")
	assert.True(t, names["enqueue"], "should register the enqueue command")
	assert.True(t, names["dlq"], "should register the dlq command")
	assert.True(t, names["stats"], "should register the stats command")
	assert.True(t, names["config"], "should register the config command")

	configFlag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag, "should have a --config flag")
	assert.Equal(t, "jobq.yaml", configFlag.DefValue)
}

func TestBuildEnqueueCommandFlags(t *testing.T) {
	cmd := buildEnqueueCommand()

	assert.Equal(t, "enqueue", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("command"))
	assert.NotNil(t, cmd.Flags().Lookup("priority"))
	assert.NotNil(t, cmd.Flags().Lookup("run-at"))
	assert.NotNil(t, cmd.RunE)
}

func TestBuildDLQCommandHasSubcommands(t *testing.T) {
	cmd := buildDLQCommand()

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["retry"])
	assert.True(t, names["purge"])
}

func TestBuildConfigCommandHasSubcommands(t *testing.T) {
	cmd := buildConfigCommand()

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["get"])
	assert.True(t, names["set"])
	assert.True(t, names["reset"])
}
