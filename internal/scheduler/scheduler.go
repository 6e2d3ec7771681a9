// Package scheduler saves progression snapshots on a cron schedule while a
// long-running front-end is serving.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/robfig/cron/v3"

	"github.com/rendis/flowgame/pkg/schema"
)

// DefaultSpec saves once a minute.
const DefaultSpec = "@every 1m"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// SnapshotSource yields the current progression. Implementations must be
// safe to call from the autosave goroutine.
type SnapshotSource interface {
	Progress() schema.ProgressSnapshot
}

// SaveFunc persists one snapshot.
type SaveFunc func(ctx context.Context, snap schema.ProgressSnapshot) error

// Autosave persists the source's snapshot whenever the cron schedule fires
// and the snapshot changed since the last successful save.
type Autosave struct {
	source   SnapshotSource
	save     SaveFunc
	schedule cron.Schedule
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	saveMu    sync.Mutex // one save at a time
	lastSaved *schema.ProgressSnapshot
	saves     int
}

// NewAutosave creates an autosaver. spec is a standard five-field cron
// expression or a descriptor such as "@every 30s".
func NewAutosave(source SnapshotSource, save SaveFunc, spec string, logger *slog.Logger) (*Autosave, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	a := &Autosave{
		source:   source,
		save:     save,
		schedule: schedule,
		logger:   logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// ParseSchedule parses a five-field cron spec or a descriptor.
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "autosave schedule %q: %v", spec, err).WithCause(err)
	}
	return schedule, nil
}

// Start launches the background save loop.
func (a *Autosave) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return fmt.Errorf("autosave already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.loop(loopCtx)
	a.logger.Info("autosave started")
	return nil
}

func (a *Autosave) loop(ctx context.Context) {
	defer close(a.done)

	for {
		now := time.Now()
		timer := time.NewTimer(a.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := a.SaveNow(ctx); err != nil {
				a.logger.Error("autosave failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SaveNow saves the current snapshot unless it equals the last one saved.
// It reports whether a save happened.
func (a *Autosave) SaveNow(ctx context.Context) (bool, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	snap := a.source.Progress()
	if a.lastSaved != nil && cmp.Equal(*a.lastSaved, snap) {
		return false, nil
	}
	if err := a.save(ctx, snap); err != nil {
		return false, err
	}
	a.lastSaved = &snap
	a.saves++
	a.logger.Debug("progress saved",
		slog.Int("current_stage", snap.CurrentStage),
		slog.Int("badges", len(snap.Badges)),
	)
	return true, nil
}

// Saves returns the number of successful saves.
func (a *Autosave) Saves() int {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.saves
}

// NextRun returns when the schedule fires next after from.
func (a *Autosave) NextRun(from time.Time) time.Time {
	return a.schedule.Next(from)
}

// Stop shuts the loop down and flushes a final save.
func (a *Autosave) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return nil
	}

	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	_, err := a.SaveNow(ctx)
	a.logger.Info("autosave stopped")
	return err
}
