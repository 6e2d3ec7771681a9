package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowgame/internal/diagram"
	"github.com/rendis/flowgame/internal/logging"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// gridWidth is the number of columns auto-placed blocks fill per row.
const gridWidth = 4

// stageView is what a client may see of a stage. Roles and expected edges
// stay hidden: they are the answer.
type stageView struct {
	Index        int                `json:"index"`
	Total        int                `json:"total"`
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Task         string             `json:"task"`
	LearningGoal string             `json:"learning_goal,omitempty"`
	Hint         string             `json:"hint,omitempty"`
	Palette      []schema.BlockKind `json:"palette"`
	Lanes        []string           `json:"lanes,omitempty"`
	Completed    bool               `json:"completed"`
	Blocks       []workspace.Block  `json:"blocks"`
	Edges        []workspace.Edge   `json:"edges"`
}

// handleStage describes the active stage and workspace.
func (s *FlowServer) handleStage(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session.CurrentStage()
	ws := s.session.Workspace()
	return marshalResult(stageView{
		Index:        s.session.CurrentIndex(),
		Total:        s.session.Catalog().Len(),
		ID:           st.ID,
		Title:        st.Title,
		Task:         st.Task,
		LearningGoal: st.LearningGoal,
		Hint:         st.Hint,
		Palette:      st.PaletteKinds(),
		Lanes:        st.Lanes,
		Completed:    s.session.Completed(),
		Blocks:       ws.Blocks(),
		Edges:        ws.Edges(),
	})
}

// handlePlace places a block, at the next free cell unless x and y are given.
func (s *FlowServer) handlePlace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kindStr, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("kind is required"), nil
	}
	kind, err := schema.ParseBlockKind(kindStr)
	if err != nil {
		return toolError(err), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, given := position(req)
	if !given {
		pos = s.session.Workspace().NextFreeCell(gridWidth)
	}
	id, err := s.session.PlaceBlock(kind, pos,
		workspace.Label(req.GetString("label", "")),
		workspace.Lane(req.GetString("lane", "")),
	)
	if err != nil {
		return toolError(err), nil
	}
	b, _ := s.session.Workspace().Block(id)
	return marshalResult(b)
}

// handleMove moves a block.
func (s *FlowServer) handleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := req.RequireString("block_id")
	if err != nil {
		return mcp.NewToolResultError("block_id is required"), nil
	}
	pos, given := position(req)
	if !given {
		return mcp.NewToolResultError("x and y are required"), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.MoveBlock(workspace.BlockID(blockID), pos); err != nil {
		return toolError(err), nil
	}
	b, _ := s.session.Workspace().Block(workspace.BlockID(blockID))
	return marshalResult(b)
}

// handleRemove removes a block and its edges.
func (s *FlowServer) handleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := req.RequireString("block_id")
	if err != nil {
		return mcp.NewToolResultError("block_id is required"), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.RemoveBlock(workspace.BlockID(blockID)); err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{"ok": true, "block_id": blockID})
}

// handleConnect adds an edge.
func (s *FlowServer) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.session.Connect(workspace.BlockID(source), workspace.BlockID(target), req.GetString("condition", ""))
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(workspace.Edge{
		ID:        id,
		Source:    workspace.BlockID(source),
		Target:    workspace.BlockID(target),
		Condition: req.GetString("condition", ""),
	})
}

// handleDisconnect removes one edge.
func (s *FlowServer) handleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	edgeID, err := req.RequireString("edge_id")
	if err != nil {
		return mcp.NewToolResultError("edge_id is required"), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Disconnect(workspace.EdgeID(edgeID)); err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{"ok": true, "edge_id": edgeID})
}

// handleUndo removes the most recent edge.
func (s *FlowServer) handleUndo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.session.RemoveLastEdge()
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(e)
}

// handleClear empties the workspace.
func (s *FlowServer) handleClear(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Clear()
	return marshalResult(map[string]any{"ok": true})
}

// handleValidate checks the workspace. A failing verdict is a normal result.
func (s *FlowServer) handleValidate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx)
	s.mu.Lock()
	out, err := s.session.ValidateCurrent(ctx)
	snap := s.session.Progress()
	s.mu.Unlock()
	if err != nil {
		return toolError(err), nil
	}

	if out.Verdict.Passed {
		s.persist(ctx, snap)
	}
	return marshalResult(out)
}

// handleProgress returns the progression snapshot.
func (s *FlowServer) handleProgress(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx)
	return marshalResult(s.Progress())
}

// handleAdvance switches to an unlocked stage.
func (s *FlowServer) handleAdvance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index is required"), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	err = s.session.AdvanceTo(ctx, index)
	snap := s.session.Progress()
	s.mu.Unlock()
	if err != nil {
		return toolError(err), nil
	}

	s.persist(ctx, snap)
	return marshalResult(snap)
}

// handleDiagram renders the workspace in the requested format.
func (s *FlowServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}
	s.captureSession(ctx)
	s.mu.Lock()
	model := s.session.Diagram()
	s.mu.Unlock()

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultImage(model.Title, base64.StdEncoding.EncodeToString(png), "image/png"), nil
	}
}

// --- Internal helpers ---

// position reads x and y. given is false unless both are present.
func position(req mcp.CallToolRequest) (workspace.Position, bool) {
	args := req.GetArguments()
	_, hasX := args["x"]
	_, hasY := args["y"]
	if !hasX || !hasY {
		return workspace.Position{}, false
	}
	return workspace.Position{X: req.GetInt("x", 0), Y: req.GetInt("y", 0)}, true
}

func (s *FlowServer) persist(ctx context.Context, snap schema.ProgressSnapshot) {
	if s.save == nil {
		return
	}
	if err := s.save(ctx, snap); err != nil {
		logging.LogWith(ctx, s.logger).Warn("progress not saved", slog.String("error", err.Error()))
	}
}

// captureSession maps the learner to the calling MCP session for notifications.
func (s *FlowServer) captureSession(ctx context.Context) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(s.learner, session.SessionID())
	}
}

// toolError reports a rejected command. The game error code leads the text.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
