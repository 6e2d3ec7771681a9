package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgame/internal/game"
	"github.com/rendis/flowgame/internal/logging"
	"github.com/rendis/flowgame/internal/stages"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

type saveRecorder struct {
	mu    sync.Mutex
	snaps []schema.ProgressSnapshot
	err   error
}

func (r *saveRecorder) save(_ context.Context, snap schema.ProgressSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return r.err
}

func newTestServer(t *testing.T, save SaveFunc) *FlowServer {
	t.Helper()
	sess := game.New(stages.Builtin(), game.WithSessionID("mcp-test"))
	return NewFlowServer(FlowServerDeps{Session: sess, Save: save, Logger: logging.Discard()})
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), buildRequest(tool, args))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func place(t *testing.T, s *FlowServer, args map[string]any) workspace.Block {
	t.Helper()
	result := call(t, s.handlePlace, "flow.place", args)
	require.False(t, result.IsError, extractText(t, result))
	var b workspace.Block
	unmarshalResult(t, result, &b)
	return b
}

func connect(t *testing.T, s *FlowServer, source, target workspace.BlockID) workspace.Edge {
	t.Helper()
	result := call(t, s.handleConnect, "flow.connect", map[string]any{"source": string(source), "target": string(target)})
	require.False(t, result.IsError, extractText(t, result))
	var e workspace.Edge
	unmarshalResult(t, result, &e)
	return e
}

// buildFirstFlow lays out Start -> Do the work -> End.
func buildFirstFlow(t *testing.T, s *FlowServer) (start, work, end workspace.Block) {
	t.Helper()
	start = place(t, s, map[string]any{"kind": "start", "label": "Start"})
	work = place(t, s, map[string]any{"kind": "process", "label": "Do the work"})
	end = place(t, s, map[string]any{"kind": "end", "label": "End"})
	connect(t, s, start.ID, work.ID)
	return start, work, end
}

// --- Tests ---

func TestStageTool(t *testing.T) {
	s := newTestServer(t, nil)

	result := call(t, s.handleStage, "flow.stage", nil)
	require.False(t, result.IsError)

	var view map[string]any
	unmarshalResult(t, result, &view)
	assert.Equal(t, "first-flow", view["id"])
	assert.Equal(t, float64(0), view["index"])
	assert.Equal(t, float64(5), view["total"])
	assert.NotContains(t, view, "roles", "the expected graph stays hidden")
}

func TestPlaceTool(t *testing.T) {
	s := newTestServer(t, nil)

	b := place(t, s, map[string]any{"kind": "start", "label": " Start "})
	assert.Equal(t, workspace.BlockID("B1"), b.ID)
	assert.Equal(t, schema.KindStart, b.Kind)
	assert.Equal(t, "Start", b.Label)
	assert.Equal(t, workspace.Position{}, b.Pos)

	b = place(t, s, map[string]any{"kind": "process", "x": float64(2), "y": float64(3)})
	assert.Equal(t, workspace.Position{X: 2, Y: 3}, b.Pos)

	auto := place(t, s, map[string]any{"kind": "end"})
	assert.Equal(t, workspace.Position{X: 1, Y: 0}, auto.Pos)
}

func TestPlaceTool_Rejections(t *testing.T) {
	s := newTestServer(t, nil)

	result := call(t, s.handlePlace, "flow.place", map[string]any{})
	assert.True(t, result.IsError)

	result = call(t, s.handlePlace, "flow.place", map[string]any{"kind": "loop"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeInvalidKind)

	// The first stage palette has no decision block.
	result = call(t, s.handlePlace, "flow.place", map[string]any{"kind": "decision"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeInvalidKind)
}

func TestMoveAndRemoveTools(t *testing.T) {
	s := newTestServer(t, nil)
	b := place(t, s, map[string]any{"kind": "start"})

	result := call(t, s.handleMove, "flow.move", map[string]any{"block_id": string(b.ID), "x": float64(4), "y": float64(1)})
	require.False(t, result.IsError)
	var moved workspace.Block
	unmarshalResult(t, result, &moved)
	assert.Equal(t, workspace.Position{X: 4, Y: 1}, moved.Pos)

	result = call(t, s.handleMove, "flow.move", map[string]any{"block_id": string(b.ID)})
	assert.True(t, result.IsError)

	result = call(t, s.handleRemove, "flow.remove", map[string]any{"block_id": "B9"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeUnknownBlock)

	result = call(t, s.handleRemove, "flow.remove", map[string]any{"block_id": string(b.ID)})
	require.False(t, result.IsError)
	blocks, _ := s.session.Workspace().Len()
	assert.Zero(t, blocks)
}

func TestConnectDisconnectUndo(t *testing.T) {
	s := newTestServer(t, nil)
	start, work, end := buildFirstFlow(t, s)

	result := call(t, s.handleConnect, "flow.connect", map[string]any{"source": string(start.ID), "target": string(start.ID)})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeSelfLoop)

	e := connect(t, s, work.ID, end.ID)
	result = call(t, s.handleDisconnect, "flow.disconnect", map[string]any{"edge_id": string(e.ID)})
	require.False(t, result.IsError)

	result = call(t, s.handleUndo, "flow.undo", nil)
	require.False(t, result.IsError)
	var undone workspace.Edge
	unmarshalResult(t, result, &undone)
	assert.Equal(t, start.ID, undone.Source)

	result = call(t, s.handleUndo, "flow.undo", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeUnknownEdge)

	result = call(t, s.handleClear, "flow.clear", nil)
	require.False(t, result.IsError)
	blocks, edges := s.session.Workspace().Len()
	assert.Zero(t, blocks)
	assert.Zero(t, edges)
}

func TestValidateTool_FailThenPass(t *testing.T) {
	rec := &saveRecorder{}
	s := newTestServer(t, rec.save)
	_, work, end := buildFirstFlow(t, s)

	result := call(t, s.handleValidate, "flow.validate", nil)
	require.False(t, result.IsError, "a failing verdict is not a tool error")
	var failed game.Outcome
	unmarshalResult(t, result, &failed)
	assert.False(t, failed.Verdict.Passed)
	assert.Equal(t, []string{"missing edge: WORK -> END"}, failed.Verdict.Messages())
	assert.Empty(t, rec.snaps)

	connect(t, s, work.ID, end.ID)
	result = call(t, s.handleValidate, "flow.validate", nil)
	var passed game.Outcome
	unmarshalResult(t, result, &passed)
	assert.True(t, passed.Verdict.Passed)
	assert.Equal(t, 2, passed.Attempt)
	assert.Equal(t, 1, passed.Unlocked)
	assert.Contains(t, passed.Badges, "Badge: Flow Starter")

	require.Len(t, rec.snaps, 1)
	assert.Equal(t, 1, rec.snaps[0].CurrentStage)
	assert.Equal(t, 1, s.Progress().CurrentStage)
}

func TestValidateTool_SaveErrorIsNotFatal(t *testing.T) {
	rec := &saveRecorder{err: errors.New("read-only")}
	s := newTestServer(t, rec.save)
	_, work, end := buildFirstFlow(t, s)
	connect(t, s, work.ID, end.ID)

	result := call(t, s.handleValidate, "flow.validate", nil)
	assert.False(t, result.IsError)
	assert.Len(t, rec.snaps, 1)
}

func TestAdvanceTool(t *testing.T) {
	rec := &saveRecorder{}
	s := newTestServer(t, rec.save)

	result := call(t, s.handleAdvance, "flow.advance", map[string]any{"index": float64(2)})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeLocked)

	result = call(t, s.handleAdvance, "flow.advance", map[string]any{})
	assert.True(t, result.IsError)

	result = call(t, s.handleAdvance, "flow.advance", map[string]any{"index": float64(0)})
	require.False(t, result.IsError)
	var snap schema.ProgressSnapshot
	unmarshalResult(t, result, &snap)
	assert.Equal(t, 0, snap.CurrentStage)
	assert.Len(t, rec.snaps, 1)
}

func TestProgressTool(t *testing.T) {
	s := newTestServer(t, nil)

	result := call(t, s.handleProgress, "flow.progress", nil)
	require.False(t, result.IsError)
	var snap schema.ProgressSnapshot
	unmarshalResult(t, result, &snap)
	assert.Equal(t, []int{0}, snap.Unlocked)
	assert.Empty(t, snap.Badges)
}

func TestDiagramTool(t *testing.T) {
	s := newTestServer(t, nil)
	buildFirstFlow(t, s)

	result := call(t, s.handleDiagram, "flow.diagram", map[string]any{"format": "mermaid"})
	require.False(t, result.IsError)
	text := extractText(t, result)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "B1 --> B2")

	result = call(t, s.handleDiagram, "flow.diagram", map[string]any{"format": "ascii"})
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "=== First Flow ===")

	result = call(t, s.handleDiagram, "flow.diagram", map[string]any{"format": "svg"})
	assert.True(t, result.IsError)

	// Rendering never counts an attempt.
	assert.Empty(t, s.Progress().Attempts)
}

func TestConcurrentToolCalls(t *testing.T) {
	s := newTestServer(t, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.handlePlace(context.Background(), buildRequest("flow.place", map[string]any{"kind": "process"}))
			assert.NoError(t, err)
			assert.False(t, result.IsError)
			_, _ = s.handleStage(context.Background(), buildRequest("flow.stage", nil))
		}()
	}
	wg.Wait()

	blocks, _ := s.session.Workspace().Len()
	assert.Equal(t, 8, blocks)
}

// --- Test helpers ---

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
