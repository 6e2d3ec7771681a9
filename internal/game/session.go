// Package game is the core-facing contract a front-end drives: one
// learner, one active workspace, one progression state.
package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rendis/flowgame/internal/diagram"
	"github.com/rendis/flowgame/internal/expressions"
	"github.com/rendis/flowgame/internal/logging"
	"github.com/rendis/flowgame/internal/progression"
	"github.com/rendis/flowgame/internal/stages"
	"github.com/rendis/flowgame/internal/validation"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

const tracerName = "flowgame/game"

// completeMessage is the verdict text once every stage has been passed.
const completeMessage = "all stages are already complete"

// EventSink receives the attempt log. Record errors are logged and never
// fail the command that produced the event.
type EventSink interface {
	Record(ctx context.Context, ev schema.GameEvent) error
}

// Outcome is the result of one ValidateCurrent call.
type Outcome struct {
	Verdict    schema.Verdict `json:"verdict"`
	StageIndex int            `json:"stage_index"`
	StageID    string         `json:"stage_id"`
	Attempt    int            `json:"attempt"`
	Badges     []string       `json:"badges,omitempty"`
	Unlocked   int            `json:"unlocked"`
	Advanced   bool           `json:"advanced"`
	Completed  bool           `json:"completed"`
}

// Session wires a stage catalog, a progression tracker, a validator and the
// active workspace. It is single-threaded: adapters that take concurrent
// input serialise calls themselves.
type Session struct {
	id        string
	catalog   *stages.Catalog
	tracker   *progression.Tracker
	validator *validation.Validator
	ws        *workspace.Workspace
	wsOpts    []workspace.Option
	sink      EventSink
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger shared by the session and its workspace.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventSink sets where attempt and progression events are sent.
func WithEventSink(sink EventSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithWorkspaceOptions applies opts to every workspace the session builds.
func WithWorkspaceOptions(opts ...workspace.Option) Option {
	return func(s *Session) { s.wsOpts = append(s.wsOpts, opts...) }
}

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) Option {
	return func(s *Session) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider. The global provider
// is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New starts a session at stage 0 with an empty workspace.
func New(catalog *stages.Catalog, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		catalog: catalog,
		logger:  logging.Discard(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validation.New(validation.WithLogger(s.logger))
	}
	trackerOpts := []progression.Option{progression.WithLogger(s.logger)}
	if rules, err := expressions.NewRuleEvaluator(); err != nil {
		s.logger.Error("badge rules disabled", slog.String("error", err.Error()))
	} else {
		trackerOpts = append(trackerOpts, progression.WithRules(rules))
	}
	s.tracker = progression.New(catalog, trackerOpts...)
	s.rebuild()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Catalog returns the stage catalog the session plays.
func (s *Session) Catalog() *stages.Catalog { return s.catalog }

// CurrentIndex returns the active stage index.
func (s *Session) CurrentIndex() int { return s.tracker.CurrentStage() }

// CurrentStage returns the active stage definition.
func (s *Session) CurrentStage() *schema.Stage {
	st, _ := s.catalog.Stage(s.tracker.CurrentStage())
	return st
}

// Hint returns the active stage's hint text.
func (s *Session) Hint() string {
	return s.CurrentStage().Hint
}

// Workspace returns the active workspace. It is replaced on stage changes,
// so callers must not hold on to it across navigation.
func (s *Session) Workspace() *workspace.Workspace { return s.ws }

// Completed reports whether every stage has been passed.
func (s *Session) Completed() bool { return s.tracker.Completed() }

func (s *Session) rebuild() {
	opts := append([]workspace.Option{workspace.WithLogger(s.logger)}, s.wsOpts...)
	s.ws = workspace.ForStage(s.CurrentStage(), opts...)
}

func (s *Session) withIDs(ctx context.Context) context.Context {
	ctx = logging.WithSessionID(ctx, s.id)
	return logging.WithStageID(ctx, s.CurrentStage().ID)
}

// --- Workspace commands ---

// PlaceBlock places a block in the active workspace.
func (s *Session) PlaceBlock(kind schema.BlockKind, pos workspace.Position, opts ...workspace.PlaceOption) (workspace.BlockID, error) {
	id, err := s.ws.PlaceBlock(kind, pos, opts...)
	s.rejected("place_block", err)
	return id, err
}

// MoveBlock moves a block to a new cell.
func (s *Session) MoveBlock(id workspace.BlockID, pos workspace.Position) error {
	err := s.ws.MoveBlock(id, pos)
	s.rejected("move_block", err)
	return err
}

// RemoveBlock removes a block and every edge touching it.
func (s *Session) RemoveBlock(id workspace.BlockID) error {
	err := s.ws.RemoveBlock(id)
	s.rejected("remove_block", err)
	return err
}

// Connect adds an edge between two blocks.
func (s *Session) Connect(source, target workspace.BlockID, condition string) (workspace.EdgeID, error) {
	id, err := s.ws.Connect(source, target, condition)
	s.rejected("connect", err)
	return id, err
}

// Disconnect removes one edge.
func (s *Session) Disconnect(id workspace.EdgeID) error {
	err := s.ws.Disconnect(id)
	s.rejected("disconnect", err)
	return err
}

// RemoveLastEdge removes the most recently created edge still present.
func (s *Session) RemoveLastEdge() (workspace.Edge, error) {
	e, err := s.ws.RemoveLastEdge()
	s.rejected("remove_last_edge", err)
	return e, err
}

// Clear empties the active workspace.
func (s *Session) Clear() { s.ws.Clear() }

func (s *Session) rejected(cmd string, err error) {
	if err == nil {
		return
	}
	s.logger.Debug("command rejected",
		slog.String("command", cmd),
		slog.String("code", schema.CodeOf(err)),
		slog.String("error", err.Error()),
	)
}

// --- Validation ---

// ValidateCurrent grades the active workspace against the active stage and
// counts one attempt. A pass unlocks the next stage, awards badges and
// moves the session forward with a fresh workspace. A failing diagram is a
// normal Outcome, never an error.
func (s *Session) ValidateCurrent(ctx context.Context) (*Outcome, error) {
	ctx = s.withIDs(ctx)
	idx := s.tracker.CurrentStage()
	st := s.CurrentStage()

	ctx, span := s.tracer.Start(ctx, "game.validate", trace.WithAttributes(
		attribute.String("flowgame.session_id", s.id),
		attribute.String("flowgame.stage_id", st.ID),
		attribute.Int("flowgame.stage_index", idx),
	))
	defer span.End()

	out := &Outcome{StageIndex: idx, StageID: st.ID, Unlocked: -1}

	if s.tracker.Completed() {
		out.Completed = true
		out.Verdict = schema.Verdict{Reasons: []schema.Reason{{
			Category: schema.CategoryGame, Code: schema.ReasonGameComplete, Message: completeMessage,
		}}}
		span.SetAttributes(attribute.Bool("flowgame.game_complete", true))
		return out, nil
	}

	attempt, err := s.tracker.RecordAttempt(idx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out.Attempt = attempt
	out.Verdict = s.validator.Validate(s.ws, st)

	span.SetAttributes(
		attribute.Bool("flowgame.passed", out.Verdict.Passed),
		attribute.Int("flowgame.reasons", len(out.Verdict.Reasons)),
		attribute.Int("flowgame.attempt", attempt),
	)

	log := logging.LogWith(ctx, s.logger)
	if !out.Verdict.Passed {
		log.Info("stage attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("reasons", len(out.Verdict.Reasons)),
		)
		s.emit(ctx, schema.GameEvent{
			Type: schema.EventAttemptFailed, StageID: st.ID, StageIndex: idx,
			Attempt: attempt, Reasons: out.Verdict.Messages(),
		})
		return out, nil
	}

	pass, err := s.tracker.OnStagePassed(ctx, idx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out.Badges = pass.Badges
	out.Unlocked = pass.Unlocked
	out.Completed = pass.Completed

	log.Info("stage passed",
		slog.Int("attempt", attempt),
		slog.Int("badges", len(pass.Badges)),
		slog.Bool("completed", pass.Completed),
	)
	s.emit(ctx, schema.GameEvent{
		Type: schema.EventStagePassed, StageID: st.ID, StageIndex: idx, Attempt: attempt, Passed: true,
	})
	for _, b := range pass.Badges {
		s.emit(ctx, schema.GameEvent{
			Type: schema.EventBadgeEarned, StageID: st.ID, StageIndex: idx, Attempt: attempt, Passed: true, Badge: b,
		})
	}
	if pass.Completed {
		s.emit(ctx, schema.GameEvent{
			Type: schema.EventGameCompleted, StageID: st.ID, StageIndex: idx, Attempt: attempt, Passed: true,
		})
		return out, nil
	}

	if next := idx + 1; s.tracker.IsUnlocked(next) {
		if err := s.tracker.AdvanceTo(next); err != nil {
			return nil, err
		}
		s.rebuild()
		out.Advanced = true
	}
	return out, nil
}

// Report grades the active workspace without counting an attempt.
func (s *Session) Report() *validation.Report {
	return s.validator.Evaluate(s.ws, s.CurrentStage())
}

// --- Progression ---

// Progress returns the flat progression snapshot.
func (s *Session) Progress() schema.ProgressSnapshot {
	return s.tracker.Snapshot()
}

// LoadProgress restores a snapshot and rebuilds the workspace for its
// current stage. An invalid snapshot leaves the session unchanged.
func (s *Session) LoadProgress(snap schema.ProgressSnapshot) error {
	if err := s.tracker.Load(snap); err != nil {
		return err
	}
	s.rebuild()
	return nil
}

// AdvanceTo switches to an unlocked stage with a fresh workspace.
// Switching to the active stage keeps the workspace.
func (s *Session) AdvanceTo(ctx context.Context, i int) error {
	if i == s.tracker.CurrentStage() {
		return nil
	}
	if err := s.tracker.AdvanceTo(i); err != nil {
		s.rejected("advance_to", err)
		return err
	}
	s.rebuild()
	st := s.CurrentStage()
	s.emit(s.withIDs(ctx), schema.GameEvent{Type: schema.EventStageAdvanced, StageID: st.ID, StageIndex: i})
	return nil
}

// RestartStage discards the workspace and starts the active stage over.
// Progression is untouched.
func (s *Session) RestartStage(ctx context.Context) {
	s.rebuild()
	st := s.CurrentStage()
	s.emit(s.withIDs(ctx), schema.GameEvent{
		Type: schema.EventStageRestarted, StageID: st.ID, StageIndex: s.tracker.CurrentStage(),
	})
}

// ResetGame returns to stage 0 with no badges and a fresh workspace.
func (s *Session) ResetGame(ctx context.Context) {
	s.tracker.Reset()
	s.rebuild()
	s.emit(s.withIDs(ctx), schema.GameEvent{Type: schema.EventGameReset, StageID: s.CurrentStage().ID})
}

// --- Rendering ---

// Diagram returns a render model of the active workspace with grading
// feedback overlaid.
func (s *Session) Diagram() *diagram.DiagramModel {
	st := s.CurrentStage()
	m := diagram.FromWorkspace(s.ws, st)
	diagram.ApplyReport(m, s.Report(), st)
	return m
}

func (s *Session) emit(ctx context.Context, ev schema.GameEvent) {
	if s.sink == nil {
		return
	}
	ev.SessionID = s.id
	ev.At = s.now().UTC()
	if err := s.sink.Record(ctx, ev); err != nil {
		logging.LogWith(ctx, s.logger).Warn("event not recorded",
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
