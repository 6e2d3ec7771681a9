package main

import "flag"

// bindCommon registers the flags every database-backed subcommand shares.
// Defaults come from cfg, so a flag only overrides when given.
func bindCommon(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path")
	fs.StringVar(&cfg.StagesPath, "stages", cfg.StagesPath, "stage pack (.json, .hcl or a directory of .hcl files; default: builtin)")
	fs.StringVar(&cfg.Learner, "learner", cfg.Learner, "learner name")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
}
