// Package progression tracks which stages are unlocked, which one is
// active and which badges have been earned.
package progression

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rendis/flowgame/internal/expressions"
	"github.com/rendis/flowgame/internal/logging"
	"github.com/rendis/flowgame/pkg/schema"
)

// StageSource is the read side of a stage catalog.
type StageSource interface {
	Len() int
	Stage(i int) (*schema.Stage, error)
	Rules() []schema.BadgeRule
}

// RuleMatcher decides whether a bonus badge rule fires.
type RuleMatcher interface {
	Matches(ctx context.Context, rule schema.BadgeRule, facts expressions.Facts) (bool, error)
}

// PassOutcome reports what a stage pass changed.
type PassOutcome struct {
	Badges    []string // newly earned, in award order
	Unlocked  int      // index unlocked by this pass, -1 when none
	Completed bool     // the last stage has been passed
}

// Tracker is the progression state for one learner. Every mutation goes
// through OnStagePassed, AdvanceTo, RecordAttempt, Load and Reset; unlocks
// and badges only grow until Reset.
type Tracker struct {
	stages StageSource
	rules  RuleMatcher
	logger *slog.Logger

	current   int
	unlocked  map[int]bool
	badges    []string
	earned    map[string]bool
	attempts  map[string]int
	completed bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRules enables bonus badge rules.
func WithRules(m RuleMatcher) Option {
	return func(t *Tracker) { t.rules = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a tracker at stage 0 with only stage 0 unlocked.
func New(stages StageSource, opts ...Option) *Tracker {
	t := &Tracker{stages: stages, logger: logging.Discard()}
	for _, opt := range opts {
		opt(t)
	}
	t.Reset()
	return t
}

// CurrentStage returns the active stage index.
func (t *Tracker) CurrentStage() int { return t.current }

// IsUnlocked reports whether stage i may be played.
func (t *Tracker) IsUnlocked(i int) bool { return t.unlocked[i] }

// Completed reports whether the last stage has been passed.
func (t *Tracker) Completed() bool { return t.completed }

// Badges returns the earned badges in award order.
func (t *Tracker) Badges() []string {
	return append([]string(nil), t.badges...)
}

// Unlocked returns the unlocked stage indices in ascending order.
func (t *Tracker) Unlocked() []int {
	out := make([]int, 0, len(t.unlocked))
	for i := range t.unlocked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// AdvanceTo makes stage i the active stage.
func (t *Tracker) AdvanceTo(i int) error {
	if _, err := t.stages.Stage(i); err != nil {
		return err
	}
	if !t.unlocked[i] {
		return schema.NewErrorf(schema.ErrCodeLocked, "stage %d is locked", i).
			WithDetails(map[string]any{"unlocked": t.Unlocked()})
	}
	t.current = i
	return nil
}

// RecordAttempt counts one validation attempt at stage i and returns the
// new count.
func (t *Tracker) RecordAttempt(i int) (int, error) {
	st, err := t.stages.Stage(i)
	if err != nil {
		return 0, err
	}
	t.attempts[st.ID]++
	return t.attempts[st.ID], nil
}

// Attempts returns the attempt count for stage i.
func (t *Tracker) Attempts(i int) int {
	st, err := t.stages.Stage(i)
	if err != nil {
		return 0
	}
	return t.attempts[st.ID]
}

// OnStagePassed unlocks stage i+1 when it exists, awards the stage badge
// and evaluates bonus badge rules. Passing the last stage completes the game.
// Passing a stage again never revokes or re-awards anything.
func (t *Tracker) OnStagePassed(ctx context.Context, i int) (*PassOutcome, error) {
	st, err := t.stages.Stage(i)
	if err != nil {
		return nil, err
	}
	if !t.unlocked[i] {
		return nil, schema.NewErrorf(schema.ErrCodeLocked, "stage %d is locked", i)
	}

	out := &PassOutcome{Unlocked: -1}
	if next := i + 1; next < t.stages.Len() {
		if !t.unlocked[next] {
			t.unlocked[next] = true
			out.Unlocked = next
		}
	} else {
		t.completed = true
	}
	out.Completed = t.completed

	if t.award(st.Badge) {
		out.Badges = append(out.Badges, st.Badge)
	}
	out.Badges = append(out.Badges, t.applyRules(ctx, i, st)...)
	return out, nil
}

func (t *Tracker) award(badge string) bool {
	if badge == "" || t.earned[badge] {
		return false
	}
	t.earned[badge] = true
	t.badges = append(t.badges, badge)
	return true
}

func (t *Tracker) applyRules(ctx context.Context, i int, st *schema.Stage) []string {
	if t.rules == nil {
		return nil
	}
	var won []string
	for _, rule := range t.stages.Rules() {
		facts := t.facts(i, st)
		ok, err := t.rules.Matches(ctx, rule, facts)
		if err != nil {
			logging.LogWith(ctx, t.logger).Warn("badge rule failed",
				slog.String("rule", rule.Name),
				slog.String("engine", rule.Engine),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok && t.award(expressions.BadgeName(rule, facts)) {
			won = append(won, expressions.BadgeName(rule, facts))
		}
	}
	return won
}

func (t *Tracker) facts(i int, st *schema.Stage) expressions.Facts {
	return expressions.Facts{
		Stage:    expressions.StageFacts{Index: i, ID: st.ID, Title: st.Title, Badge: st.Badge},
		Attempts: t.attempts[st.ID],
		Progress: expressions.ProgressFacts{
			Completed: t.completed,
			Passed:    t.passedCount(),
			Total:     t.stages.Len(),
			Badges:    t.Badges(),
		},
	}
}

// passedCount derives the number of passed stages: every stage whose
// successor is unlocked, plus the last one when the game is complete.
func (t *Tracker) passedCount() int {
	n := 0
	for i := range t.unlocked {
		if t.unlocked[i+1] {
			n++
		}
	}
	if t.completed {
		n++
	}
	return n
}

// Reset returns to stage 0 with only stage 0 unlocked and clears badges and
// attempt counts. It is for full-game restarts, never per-stage retries.
func (t *Tracker) Reset() {
	t.current = 0
	t.unlocked = map[int]bool{0: true}
	t.badges = nil
	t.earned = make(map[string]bool)
	t.attempts = make(map[string]int)
	t.completed = false
}

// Snapshot returns the flat persistable record of the progression.
func (t *Tracker) Snapshot() schema.ProgressSnapshot {
	attempts := make(map[string]int, len(t.attempts))
	for k, v := range t.attempts {
		attempts[k] = v
	}
	badges := t.Badges()
	if badges == nil {
		badges = []string{}
	}
	return schema.ProgressSnapshot{
		CurrentStage: t.current,
		Unlocked:     t.Unlocked(),
		Badges:       badges,
		Attempts:     attempts,
		Completed:    t.completed,
	}
}

// Load replaces the state with snap after checking it against the catalog.
// On error the tracker is unchanged.
func (t *Tracker) Load(snap schema.ProgressSnapshot) error {
	n := t.stages.Len()
	unlocked := map[int]bool{0: true}
	for _, i := range snap.Unlocked {
		if i < 0 || i >= n {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"snapshot unlocks stage %d, catalog has %d stages", i, n)
		}
		unlocked[i] = true
	}
	if snap.CurrentStage < 0 || snap.CurrentStage >= n {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"snapshot current stage %d out of range", snap.CurrentStage)
	}
	if !unlocked[snap.CurrentStage] {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"snapshot current stage %d is not unlocked", snap.CurrentStage)
	}

	known := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		st, _ := t.stages.Stage(i)
		known[st.ID] = true
	}
	attempts := make(map[string]int, len(snap.Attempts))
	for id, c := range snap.Attempts {
		if !known[id] {
			t.logger.Warn("dropping attempts for unknown stage", slog.String("stage_id", id))
			continue
		}
		attempts[id] = c
	}

	t.current = snap.CurrentStage
	t.unlocked = unlocked
	t.badges = nil
	t.earned = make(map[string]bool, len(snap.Badges))
	for _, b := range snap.Badges {
		t.award(b)
	}
	t.attempts = attempts
	t.completed = snap.Completed
	return nil
}
