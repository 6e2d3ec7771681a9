package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/flowgame/internal/terminal"
)

// runPlay starts the terminal front-end for the configured learner.
func runPlay(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	bindCommon(fs, &cfg)
	fs.BoolVar(&cfg.ExclusiveCells, "exclusive-cells", cfg.ExclusiveCells, "reject placing two blocks in one grid cell")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()
	ctx = a.context(ctx)

	sess, err := a.newSession(ctx)
	if err != nil {
		fatalf("%v", err)
	}

	console := terminal.NewConsole(sess, os.Stdout,
		terminal.WithLogger(a.logger),
		terminal.WithSave(a.save),
	)
	if err := console.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		fatalf("%v", err)
	}
	if err := a.save(ctx, sess.Progress()); err != nil {
		fatalf("progress not saved: %v", err)
	}
}
