package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowgame/internal/game"
	"github.com/rendis/flowgame/internal/streaming"
	"github.com/rendis/flowgame/pkg/schema"
)

// SaveFunc persists a progression snapshot after it changes.
type SaveFunc func(ctx context.Context, snap schema.ProgressSnapshot) error

// FlowServerDeps holds the dependencies for creating a FlowServer.
type FlowServerDeps struct {
	Session *game.Session
	Save    SaveFunc
	Learner string
	Hub     streaming.EventHub
	Logger  *slog.Logger
}

// FlowServer exposes one game session as MCP tools. Tool calls may arrive
// concurrently; every call holds mu while it touches the session.
type FlowServer struct {
	mu        sync.Mutex
	session   *game.Session
	save      SaveFunc
	learner   string
	hub       streaming.EventHub
	logger    *slog.Logger
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
	notifier  ProgressNotifier
}

// NewFlowServer creates a FlowServer with every flow.* tool registered.
func NewFlowServer(deps FlowServerDeps) *FlowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	learner := deps.Learner
	if learner == "" {
		learner = "player"
	}

	s := &FlowServer{
		session:  deps.Session,
		save:     deps.Save,
		learner:  learner,
		hub:      deps.Hub,
		logger:   logger,
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"flowgame",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowgame is a flow diagram learning game. Read the task with flow.stage, "+
			"place blocks with flow.place, connect them with flow.connect (decision branches need a condition), "+
			"then call flow.validate. Passing a stage unlocks the next one and awards badges."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Forward pushes progression events from the hub to the connected learner
// until ctx is done. It returns at once when the server has no hub.
func (s *FlowServer) Forward(ctx context.Context) error {
	if s.hub == nil {
		return nil
	}
	events, cancel, err := s.hub.Subscribe(ctx, streaming.EventFilter{
		SessionID:  s.session.ID(),
		EventTypes: []string{schema.EventStagePassed, schema.EventBadgeEarned, schema.EventGameCompleted},
	})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			payload := map[string]any{"level": "info", "logger": "flowgame", "data": ev}
			if err := s.notifier.Notify(ctx, s.learner, payload); err != nil {
				s.logger.Debug("notification not delivered",
					slog.String("event", ev.Type),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Progress returns the session's snapshot. Safe for concurrent use.
func (s *FlowServer) Progress() schema.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Progress()
}

func (s *FlowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: stageTool(), Handler: s.handleStage},
		{Tool: placeTool(), Handler: s.handlePlace},
		{Tool: moveTool(), Handler: s.handleMove},
		{Tool: removeTool(), Handler: s.handleRemove},
		{Tool: connectTool(), Handler: s.handleConnect},
		{Tool: disconnectTool(), Handler: s.handleDisconnect},
		{Tool: undoTool(), Handler: s.handleUndo},
		{Tool: clearTool(), Handler: s.handleClear},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: progressTool(), Handler: s.handleProgress},
		{Tool: advanceTool(), Handler: s.handleAdvance},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func stageTool() mcp.Tool {
	return mcp.NewTool("flow.stage",
		mcp.WithDescription("Describe the active stage and the current workspace"),
	)
}

func placeTool() mcp.Tool {
	return mcp.NewTool("flow.place",
		mcp.WithDescription("Place a block on the workspace"),
		mcp.WithString("kind", mcp.Required(),
			mcp.Enum("start", "process", "decision", "end"),
			mcp.Description("Block kind; must be in the stage palette"),
		),
		mcp.WithString("label", mcp.Description("Block text")),
		mcp.WithString("lane", mcp.Description("Swimlane the block belongs to")),
		mcp.WithNumber("x", mcp.Description("Grid column (default: next free cell)")),
		mcp.WithNumber("y", mcp.Description("Grid row (default: next free cell)")),
	)
}

func moveTool() mcp.Tool {
	return mcp.NewTool("flow.move",
		mcp.WithDescription("Move a block to another grid cell"),
		mcp.WithString("block_id", mcp.Required(), mcp.Description("ID of the block to move")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Grid column")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Grid row")),
	)
}

func removeTool() mcp.Tool {
	return mcp.NewTool("flow.remove",
		mcp.WithDescription("Remove a block and every edge touching it"),
		mcp.WithString("block_id", mcp.Required(), mcp.Description("ID of the block to remove")),
	)
}

func connectTool() mcp.Tool {
	return mcp.NewTool("flow.connect",
		mcp.WithDescription("Connect two blocks with a directed edge"),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source block ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target block ID")),
		mcp.WithString("condition", mcp.Description("Branch label; required when the source is a decision")),
	)
}

func disconnectTool() mcp.Tool {
	return mcp.NewTool("flow.disconnect",
		mcp.WithDescription("Remove one edge"),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("ID of the edge to remove")),
	)
}

func undoTool() mcp.Tool {
	return mcp.NewTool("flow.undo",
		mcp.WithDescription("Remove the most recently added edge"),
	)
}

func clearTool() mcp.Tool {
	return mcp.NewTool("flow.clear",
		mcp.WithDescription("Remove every block and edge from the workspace"),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("flow.validate",
		mcp.WithDescription("Check the workspace against the active stage; a pass unlocks the next stage"),
	)
}

func progressTool() mcp.Tool {
	return mcp.NewTool("flow.progress",
		mcp.WithDescription("Get the progression snapshot: current stage, unlocked stages, badges, attempts"),
	)
}

func advanceTool() mcp.Tool {
	return mcp.NewTool("flow.advance",
		mcp.WithDescription("Switch to an unlocked stage; the workspace is rebuilt for it"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("0-based stage index")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flow.diagram",
		mcp.WithDescription("Render the workspace with match status. Returns ASCII art, Mermaid flowchart syntax, or a PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (PNG)"),
		),
	)
}
