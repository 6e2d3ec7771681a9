package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := loadConfig()
	assert.Equal(t, filepath.Join(home, ".flowgame", "flowgame.db"), cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "player", cfg.Learner)
	assert.Equal(t, "@every 1m", cfg.Autosave)
	assert.Empty(t, cfg.StagesPath)
	assert.False(t, cfg.ExclusiveCells)
}

func TestLoadConfig_Layers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	settings := defaultConfig()
	settings.Learner = "ada"
	settings.LogLevel = "debug"
	settings.ExclusiveCells = true
	_, err := writeSettings(settings)
	require.NoError(t, err)

	cfg := loadConfig()
	assert.Equal(t, "ada", cfg.Learner)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ExclusiveCells)

	t.Setenv("FLOWGAME_LEARNER", "bob")
	t.Setenv("FLOWGAME_EXCLUSIVE_CELLS", "0")
	t.Setenv("FLOWGAME_STAGES", "pack.hcl")
	cfg = loadConfig()
	assert.Equal(t, "bob", cfg.Learner, "env beats settings.json")
	assert.False(t, cfg.ExclusiveCells)
	assert.Equal(t, "pack.hcl", cfg.StagesPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_BadSettingsIgnored(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".flowgame"), 0o700))
	require.NoError(t, os.WriteFile(settingsPath(), []byte("{not json"), 0o644))

	cfg := loadConfig()
	assert.Equal(t, "player", cfg.Learner)
}
