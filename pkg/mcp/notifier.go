package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// ProgressNotifier pushes progression news (badges, unlocked stages) to a
// connected learner.
type ProgressNotifier interface {
	Notify(ctx context.Context, learner string, payload map[string]any) error
}

// MCPNotifier implements ProgressNotifier with MCP server notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes through the MCP server.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the learner's session.
// Best-effort: returns nil if the learner is not connected.
func (n *MCPNotifier) Notify(_ context.Context, learner string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(learner)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
