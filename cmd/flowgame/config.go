package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all flowgame configuration.
// Priority: env vars > settings.json > defaults. Subcommand flags override all three.
type Config struct {
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	StagesPath     string `json:"stages_path,omitempty"`
	Learner        string `json:"learner"`
	Autosave       string `json:"autosave"`
	DiagramDir     string `json:"diagram_dir"`
	ExclusiveCells bool   `json:"exclusive_cells"`
}

func defaultConfig() Config {
	return Config{
		DBPath:     filepath.Join(flowgameDir(), "flowgame.db"),
		LogLevel:   "warn",
		Learner:    "player",
		Autosave:   "@every 1m",
		DiagramDir: ".",
	}
}

func flowgameDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowgame"
	}
	return filepath.Join(home, ".flowgame")
}

func settingsPath() string {
	return filepath.Join(flowgameDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWGAME_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWGAME_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWGAME_STAGES"); v != "" {
		cfg.StagesPath = v
	}
	if v := os.Getenv("FLOWGAME_LEARNER"); v != "" {
		cfg.Learner = v
	}
	if v := os.Getenv("FLOWGAME_AUTOSAVE"); v != "" {
		cfg.Autosave = v
	}
	if v := os.Getenv("FLOWGAME_DIAGRAM_DIR"); v != "" {
		cfg.DiagramDir = v
	}
	if v := os.Getenv("FLOWGAME_EXCLUSIVE_CELLS"); v != "" {
		cfg.ExclusiveCells = v == "true" || v == "1"
	}

	return cfg
}

// writeSettings stores cfg as the settings.json layer.
func writeSettings(cfg Config) (string, error) {
	if err := os.MkdirAll(flowgameDir(), 0o700); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
