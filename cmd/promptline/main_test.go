package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/promptline/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() {
		flagConfig, flagFormat, flagForce = "", "text", false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = dir
	cfg.Native.ToolsDir = filepath.Join(dir, "native")

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.Save(path))
	return path
}

func TestRootHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "status", "stop", "detect", "symbols", "settings", "history", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out := run(t, "version")
	assert.Contains(t, out, "promptline version "+version)
}

func TestSettingsInitAndShow(t *testing.T) {
	path := writeConfig(t)

	out := run(t, "settings", "init", "--config", path)
	assert.Contains(t, out, "Wrote ")
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "settings.yml"))

	out = run(t, "settings", "init", "--config", path)
	assert.Contains(t, out, "already exists")

	out = run(t, "settings", "show", "--config", path)
	assert.Contains(t, out, "position: active-text-field")
}

func TestStatusWhenStopped(t *testing.T) {
	path := writeConfig(t)
	out := run(t, "status", "--config", path)
	assert.Contains(t, out, "stopped")
}
