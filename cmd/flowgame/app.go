package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/flowgame/internal/game"
	"github.com/rendis/flowgame/internal/identity"
	"github.com/rendis/flowgame/internal/logging"
	"github.com/rendis/flowgame/internal/stages"
	"github.com/rendis/flowgame/internal/store"
	"github.com/rendis/flowgame/internal/streaming"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// app is the wiring shared by the subcommands that touch the database.
type app struct {
	cfg     Config
	logger  *slog.Logger
	catalog *stages.Catalog
	pack    string
	store   *store.LibSQLStore
	learner *store.Learner
}

func openApp(ctx context.Context, cfg Config) (*app, error) {
	logger := logging.New(os.Stderr, cfg.LogLevel)

	catalog, err := stages.LoadFile(cfg.StagesPath)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	learner, err := identity.EnsureLearner(ctx, st, cfg.Learner, nil)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("learner %q: %w", cfg.Learner, err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		pack:    packKey(catalog, cfg.StagesPath),
		store:   st,
		learner: learner,
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// context tags ctx with the learner id for log correlation.
func (a *app) context(ctx context.Context) context.Context {
	return logging.WithLearnerID(ctx, a.learner.ID)
}

// newSession builds a session that logs attempts under the learner, also
// records events to extra, and resumes the stored progress for this pack.
func (a *app) newSession(ctx context.Context, extra ...streaming.Sink) (*game.Session, error) {
	sinks := append([]streaming.Sink{store.NewLearnerSink(a.store, a.learner.ID)}, extra...)
	opts := []game.Option{
		game.WithLogger(a.logger),
		game.WithEventSink(streaming.Tee(sinks...)),
	}
	if a.cfg.ExclusiveCells {
		opts = append(opts, game.WithWorkspaceOptions(workspace.WithExclusiveCells()))
	}
	sess := game.New(a.catalog, opts...)

	rec, err := a.store.LoadProgress(ctx, a.learner.ID, a.pack)
	switch {
	case err == nil:
		if lerr := sess.LoadProgress(rec.Snapshot); lerr != nil {
			logging.LogWith(ctx, a.logger).Warn("stored progress ignored",
				slog.String("pack", a.pack),
				slog.String("error", lerr.Error()),
			)
		}
	case schema.IsCode(err, schema.ErrCodeNotFound):
	default:
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return sess, nil
}

// save stores a snapshot for this learner and pack.
func (a *app) save(ctx context.Context, snap schema.ProgressSnapshot) error {
	return a.store.SaveProgress(ctx, a.learner.ID, a.pack, snap)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
