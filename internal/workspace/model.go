package workspace

import (
	"fmt"

	"github.com/rendis/flowgame/pkg/schema"
)

// BlockID identifies a block within one workspace.
type BlockID string

// EdgeID identifies an edge within one workspace.
type EdgeID string

// Position is a grid cell on the canvas. The validator never reads it.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Block is a placed flowchart node. Kind is fixed at placement.
type Block struct {
	ID    BlockID          `json:"id"`
	Kind  schema.BlockKind `json:"kind"`
	Label string           `json:"label,omitempty"`
	Lane  string           `json:"lane,omitempty"`
	Pos   Position         `json:"pos"`
}

// Edge is a directed connection between two blocks of the same workspace.
type Edge struct {
	ID        EdgeID  `json:"id"`
	Source    BlockID `json:"source"`
	Target    BlockID `json:"target"`
	Condition string  `json:"condition,omitempty"`
}

func (e Edge) String() string {
	if e.Condition != "" {
		return fmt.Sprintf("%s->%s;%s", e.Source, e.Target, e.Condition)
	}
	return fmt.Sprintf("%s->%s", e.Source, e.Target)
}

// edgeKey is the duplicate-detection identity of an edge.
type edgeKey struct {
	source, target BlockID
	condition      string
}

func keyOf(source, target BlockID, condition string) edgeKey {
	return edgeKey{source: source, target: target, condition: schema.NormalizeText(condition)}
}
