package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/dbsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "path to config file")
	return cmd
}

func TestResolveConfigPathFlagBeatsEnv(t *testing.T) {
	cmd := newTestCmd()
	flagPath := "/tmp/flag/config.yaml"

	t.Setenv("DBSYNC_CONFIG_PATH", "/tmp/env/config.yaml")
	assert.NoError(t, cmd.PersistentFlags().Set("config", flagPath))

	assert.Equal(t, flagPath, resolveConfigPath(cmd))
}

func TestResolveConfigPathUsesEnvWhenNoFlag(t *testing.T) {
	cmd := newTestCmd()
	envPath := "/tmp/env/config.yaml"
	t.Setenv("DBSYNC_CONFIG_PATH", envPath)

	assert.Equal(t, envPath, resolveConfigPath(cmd))
}

func TestResolveConfigPathFindsExistingFile(t *testing.T) {
	oldHome := home
	home = t.TempDir()
	t.Cleanup(func() { home = oldHome })

	cmd := newTestCmd()
	t.Setenv("DBSYNC_CONFIG_PATH", "")

	existing := filepath.Join(home, ".dbsync", "config.json")
	assert.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	assert.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	assert.Equal(t, existing, resolveConfigPath(cmd))
}

func TestResolveConfigPathFallsBackToDefault(t *testing.T) {
	oldHome := home
	home = t.TempDir()
	t.Cleanup(func() { home = oldHome })

	cmd := newTestCmd()
	t.Setenv("DBSYNC_CONFIG_PATH", "")

	assert.Equal(t, config.DefaultConfigPath, resolveConfigPath(cmd))
}
