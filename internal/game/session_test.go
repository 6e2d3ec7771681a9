package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rendis/flowgame/internal/diagram"
	"github.com/rendis/flowgame/internal/stages"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

type recordingSink struct {
	events []schema.GameEvent
	err    error
}

func (r *recordingSink) Record(_ context.Context, ev schema.GameEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) types() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithSessionID("sess-1"), WithTracerProvider(noop.NewTracerProvider())}, opts...)
	return New(stages.Builtin(), opts...)
}

// solve builds the expected graph of the active stage in the workspace.
func solve(t *testing.T, s *Session) {
	t.Helper()
	st := s.CurrentStage()
	ids := make(map[string]workspace.BlockID, len(st.Roles))
	for i, r := range st.Roles {
		id, err := s.PlaceBlock(r.Kind, workspace.Position{X: 0, Y: i}, workspace.Label(r.Label), workspace.Lane(r.Lane))
		require.NoError(t, err)
		ids[r.ID] = id
	}
	for _, e := range st.Edges {
		_, err := s.Connect(ids[e.From], ids[e.To], e.Condition)
		require.NoError(t, err)
	}
}

// --- Scenarios ---

func TestValidateCurrent_FirstStagePasses(t *testing.T) {
	s := newSession(t)
	solve(t, s)

	out, err := s.ValidateCurrent(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Verdict.Passed)
	assert.Empty(t, out.Verdict.Reasons)
	assert.Equal(t, 0, out.StageIndex)
	assert.Equal(t, 1, out.Attempt)
	assert.Equal(t, 1, out.Unlocked)
	assert.True(t, out.Advanced)
	assert.False(t, out.Completed)
	assert.Equal(t, []string{"Badge: Flow Starter", "First Try: First Flow"}, out.Badges)

	assert.Equal(t, 1, s.CurrentIndex())
	assert.Equal(t, "block-basics", s.CurrentStage().ID)
	blocks, edges := s.Workspace().Len()
	assert.Zero(t, blocks)
	assert.Zero(t, edges)
}

func TestValidateCurrent_MissingEdgeKeepsNextLocked(t *testing.T) {
	s := newSession(t)
	start, err := s.PlaceBlock(schema.KindStart, workspace.Position{}, workspace.Label("Start"))
	require.NoError(t, err)
	work, err := s.PlaceBlock(schema.KindProcess, workspace.Position{Y: 1}, workspace.Label("Do the work"))
	require.NoError(t, err)
	_, err = s.PlaceBlock(schema.KindEnd, workspace.Position{Y: 2}, workspace.Label("End"))
	require.NoError(t, err)
	_, err = s.Connect(start, work, "")
	require.NoError(t, err)

	out, err := s.ValidateCurrent(context.Background())
	require.NoError(t, err)

	assert.False(t, out.Verdict.Passed)
	assert.Equal(t, []string{"missing edge: WORK -> END"}, out.Verdict.Messages())
	assert.False(t, out.Advanced)
	assert.Equal(t, -1, out.Unlocked)
	assert.Equal(t, 0, s.CurrentIndex())

	snap := s.Progress()
	assert.Equal(t, []int{0}, snap.Unlocked)
	assert.Equal(t, 1, snap.Attempts["first-flow"])
}

func TestAdvanceTo_LockedLeavesProgress(t *testing.T) {
	s := newSession(t)
	before := s.Progress()

	err := s.AdvanceTo(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeLocked))
	assert.Equal(t, before, s.Progress())

	err = s.AdvanceTo(context.Background(), 99)
	assert.True(t, schema.IsCode(err, schema.ErrCodeUnknownStage))
}

func TestAdvanceTo_RebuildsWorkspace(t *testing.T) {
	sink := &recordingSink{}
	s := newSession(t, WithEventSink(sink))
	solve(t, s)
	_, err := s.ValidateCurrent(context.Background())
	require.NoError(t, err)
	_, err = s.PlaceBlock(schema.KindStart, workspace.Position{})
	require.NoError(t, err)

	// Same stage keeps the workspace.
	require.NoError(t, s.AdvanceTo(context.Background(), 1))
	blocks, _ := s.Workspace().Len()
	assert.Equal(t, 1, blocks)

	require.NoError(t, s.AdvanceTo(context.Background(), 0))
	blocks, _ = s.Workspace().Len()
	assert.Zero(t, blocks)
	assert.Equal(t, schema.EventStageAdvanced, sink.events[len(sink.events)-1].Type)
}

func TestPlaceBlock_PaletteFromStage(t *testing.T) {
	s := newSession(t)
	_, err := s.PlaceBlock(schema.KindDecision, workspace.Position{})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidKind))
}

// --- Completion ---

func TestPlayThrough_CompletesGame(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	var last *Outcome
	for i := 0; i < s.Catalog().Len(); i++ {
		require.Equal(t, i, s.CurrentIndex())
		solve(t, s)
		out, err := s.ValidateCurrent(ctx)
		require.NoError(t, err)
		require.True(t, out.Verdict.Passed, "stage %d: %v", i, out.Verdict.Messages())
		last = out
	}

	assert.True(t, last.Completed)
	assert.False(t, last.Advanced)
	assert.Contains(t, last.Badges, "Flow Architect")
	assert.True(t, s.Completed())
	assert.Equal(t, s.Catalog().Len()-1, s.CurrentIndex())

	before := s.Progress()
	again, err := s.ValidateCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, again.Verdict.Passed)
	require.Len(t, again.Verdict.Reasons, 1)
	assert.Equal(t, schema.ReasonGameComplete, again.Verdict.Reasons[0].Code)
	assert.Equal(t, "all stages are already complete", again.Verdict.Reasons[0].Message)
	assert.Equal(t, before, s.Progress(), "completed game counts no attempts")
}

func TestResetGame(t *testing.T) {
	sink := &recordingSink{}
	s := newSession(t, WithEventSink(sink))
	solve(t, s)
	_, err := s.ValidateCurrent(context.Background())
	require.NoError(t, err)

	s.ResetGame(context.Background())

	snap := s.Progress()
	assert.Equal(t, 0, snap.CurrentStage)
	assert.Equal(t, []int{0}, snap.Unlocked)
	assert.Empty(t, snap.Badges)
	assert.Equal(t, schema.EventGameReset, sink.events[len(sink.events)-1].Type)
}

func TestRestartStage_KeepsProgress(t *testing.T) {
	s := newSession(t)
	_, err := s.PlaceBlock(schema.KindStart, workspace.Position{})
	require.NoError(t, err)
	before := s.Progress()

	s.RestartStage(context.Background())

	blocks, _ := s.Workspace().Len()
	assert.Zero(t, blocks)
	assert.Equal(t, before, s.Progress())
}

// --- Events ---

func TestEvents_FailThenPass(t *testing.T) {
	sink := &recordingSink{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newSession(t, WithEventSink(sink), WithClock(func() time.Time { return at }))

	_, err := s.ValidateCurrent(context.Background())
	require.NoError(t, err)
	solve(t, s)
	_, err = s.ValidateCurrent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		schema.EventAttemptFailed,
		schema.EventStagePassed,
		schema.EventBadgeEarned,
	}, sink.types())

	failed := sink.events[0]
	assert.Equal(t, "sess-1", failed.SessionID)
	assert.Equal(t, "first-flow", failed.StageID)
	assert.Equal(t, 1, failed.Attempt)
	assert.NotEmpty(t, failed.Reasons)
	assert.Equal(t, at, failed.At)

	assert.Equal(t, 2, sink.events[1].Attempt)
	assert.Equal(t, "Badge: Flow Starter", sink.events[2].Badge)
}

func TestEvents_SinkErrorDoesNotFail(t *testing.T) {
	s := newSession(t, WithEventSink(&recordingSink{err: errors.New("disk full")}))
	solve(t, s)
	out, err := s.ValidateCurrent(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Verdict.Passed)
}

// --- Persistence hand-off ---

func TestLoadProgress(t *testing.T) {
	s := newSession(t)
	_, err := s.PlaceBlock(schema.KindStart, workspace.Position{})
	require.NoError(t, err)

	err = s.LoadProgress(schema.ProgressSnapshot{CurrentStage: 3, Unlocked: []int{0, 1}})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	blocks, _ := s.Workspace().Len()
	assert.Equal(t, 1, blocks, "rejected snapshot keeps the workspace")

	snap := schema.ProgressSnapshot{
		CurrentStage: 2,
		Unlocked:     []int{0, 1, 2},
		Badges:       []string{"Badge: Flow Starter", "Badge: Blink Builder"},
		Attempts:     map[string]int{"first-flow": 3},
	}
	require.NoError(t, s.LoadProgress(snap))
	assert.Equal(t, "decision-branching", s.CurrentStage().ID)
	blocks, _ = s.Workspace().Len()
	assert.Zero(t, blocks)
	assert.Equal(t, snap.Badges, s.Progress().Badges)
	assert.Equal(t, s.CurrentStage().Hint, s.Hint())
}

// --- Rendering ---

func TestDiagram_OverlaysReport(t *testing.T) {
	s := newSession(t)
	solve(t, s)
	_, err := s.PlaceBlock(schema.KindProcess, workspace.Position{X: 3}, workspace.Label("spare"))
	require.NoError(t, err)

	m := s.Diagram()
	require.Len(t, m.Nodes, 4)
	assert.Equal(t, "First Flow", m.Title)
	assert.Equal(t, diagram.StatusMatched, m.Nodes[0].Status.Status)
	assert.Equal(t, diagram.StatusUnused, m.Nodes[3].Status.Status)

	// Rendering never counts an attempt.
	assert.Zero(t, s.Progress().Attempts["first-flow"])
}
