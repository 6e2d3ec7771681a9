// Package diagram turns workspaces and stage solutions into a render
// model, and renders that model as Mermaid, ASCII or PNG.
package diagram

import "github.com/rendis/flowgame/pkg/schema"

// NodeKind classifies a diagram node by its block kind.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindProcess  NodeKind = "process"
	NodeKindDecision NodeKind = "decision"
	NodeKindEnd      NodeKind = "end"
)

func kindOf(k schema.BlockKind) NodeKind {
	switch k {
	case schema.KindStart:
		return NodeKindStart
	case schema.KindDecision:
		return NodeKindDecision
	case schema.KindEnd:
		return NodeKindEnd
	default:
		return NodeKindProcess
	}
}

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Lanes  []Lane
	Levels [][]string
}

// Node is one block (or, for a stage solution, one role).
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Lane   string
	Status *StatusOverlay
}

// Lane groups the nodes owned by one swimlane actor.
type Lane struct {
	Name    string
	NodeIDs []string
}

// StatusOverlay carries grading feedback for a node.
type StatusOverlay struct {
	Status string // matched | unused | wrong_lane
	Role   string // stage role the block was matched to
}

// Overlay statuses.
const (
	StatusMatched   = "matched"
	StatusUnused    = "unused"
	StatusWrongLane = "wrong_lane"
)

// Edge is a directed connection, optionally labelled with a branch condition.
type Edge struct {
	From  string
	To    string
	Label string
}
