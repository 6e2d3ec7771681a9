package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rendis/flowgame/internal/identity"
	"github.com/rendis/flowgame/internal/scheduler"
)

// runInit writes the settings.json layer from flags and current config.
func runInit(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	bindCommon(fs, &cfg)
	fs.StringVar(&cfg.Autosave, "autosave", cfg.Autosave, "autosave schedule for serve (cron spec or @every)")
	fs.StringVar(&cfg.DiagramDir, "diagram-dir", cfg.DiagramDir, "default export directory")
	fs.BoolVar(&cfg.ExclusiveCells, "exclusive-cells", cfg.ExclusiveCells, "reject placing two blocks in one grid cell")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := identity.ValidateName(identity.NormalizeName(cfg.Learner)); err != nil {
		fatalf("%v", err)
	}
	if _, err := scheduler.ParseSchedule(cfg.Autosave); err != nil {
		fatalf("%v", err)
	}

	path, err := writeSettings(cfg)
	if err != nil {
		fatalf("cannot write settings: %v", err)
	}
	fmt.Printf("Config written to %s\n", path)
}
