package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("ada", "session-abc")
	sid, ok := r.SessionFor("ada")
	assert.True(t, ok)
	assert.Equal(t, "session-abc", sid)

	_, ok = r.SessionFor("unknown")
	assert.False(t, ok)
}

func TestSessionRegistry_Overwrite(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("ada", "session-old")
	r.Register("ada", "session-new")

	sid, ok := r.SessionFor("ada")
	assert.True(t, ok)
	assert.Equal(t, "session-new", sid)
}

func TestSessionRegistry_Remove(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("ada", "session-abc")
	r.Register("bob", "session-abc")
	r.Register("cy", "session-xyz")

	r.Remove("session-abc")

	_, ok := r.SessionFor("ada")
	assert.False(t, ok)
	_, ok = r.SessionFor("bob")
	assert.False(t, ok)

	sid, ok := r.SessionFor("cy")
	assert.True(t, ok)
	assert.Equal(t, "session-xyz", sid)
}

func TestMCPNotifier_NotConnectedIsNoop(t *testing.T) {
	s := newTestServer(t, nil)
	n := NewMCPNotifier(s.MCPServer(), NewSessionRegistry())
	assert.NoError(t, n.Notify(t.Context(), "ada", map[string]any{"level": "info"}))
}
