package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/flowgame/internal/scheduler"
	"github.com/rendis/flowgame/internal/streaming"
	flowmcp "github.com/rendis/flowgame/pkg/mcp"
)

// runServe exposes the learner's session as MCP tools on stdio and
// autosaves progress on the configured schedule.
func runServe(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	bindCommon(fs, &cfg)
	fs.StringVar(&cfg.Autosave, "autosave", cfg.Autosave, "autosave schedule (cron spec or @every)")
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

	hub := streaming.NewMemoryHub()
	sess, err := a.newSession(ctx, hub)
	if err != nil {
		fatalf("%v", err)
	}

	srv := flowmcp.NewFlowServer(flowmcp.FlowServerDeps{
		Session: sess,
		Save:    a.save,
		Learner: a.learner.Name,
		Hub:     hub,
		Logger:  a.logger,
	})
	go func() {
		if err := srv.Forward(ctx); err != nil {
			a.logger.Warn("notifications disabled", slog.String("error", err.Error()))
		}
	}()

	autosave, err := scheduler.NewAutosave(srv, a.save, cfg.Autosave, a.logger)
	if err != nil {
		fatalf("%v", err)
	}
	if err := autosave.Start(ctx); err != nil {
		fatalf("%v", err)
	}

	a.logger.Info("serving MCP on stdio",
		slog.String("learner", a.learner.Name),
		slog.String("pack", a.pack),
	)
	serveErr := srv.Serve(ctx)

	if err := autosave.Stop(context.WithoutCancel(ctx)); err != nil {
		a.logger.Error("final save failed", slog.String("error", err.Error()))
	}
	if serveErr != nil && ctx.Err() == nil {
		fatalf("%v", serveErr)
	}
}
