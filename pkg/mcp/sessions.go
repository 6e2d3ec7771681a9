package mcp

import "sync"

// SessionRegistry maps learner names to MCP session IDs.
// Populated whenever a connected client calls a tool.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // learner → sessionID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates a learner with a session ID.
// A reconnecting client overwrites the previous session.
func (r *SessionRegistry) Register(learner, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[learner] = sessionID
}

// SessionFor returns the session ID for the given learner, if connected.
func (r *SessionRegistry) SessionFor(learner string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[learner]
	return sid, ok
}

// Remove deletes every learner mapping for the given session ID.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for learner, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, learner)
		}
	}
}
