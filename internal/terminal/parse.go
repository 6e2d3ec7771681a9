// Package terminal is the text front-end: a line format for nodes and
// edges plus an interactive console loop over a game session.
package terminal

import (
	"strings"

	"github.com/rendis/flowgame/pkg/schema"
)

// NodeSpec is one parsed "NODE_ID;kind;label[;lane]" line.
type NodeSpec struct {
	ID    string
	Kind  schema.BlockKind
	Label string
	Lane  string
}

// EdgeSpec is one parsed "SOURCE->TARGET[;label]" line.
type EdgeSpec struct {
	From  string
	To    string
	Label string
}

// stopLabels mark a start_end terminal as the end of the flow.
var stopLabels = map[string]bool{"end": true, "stop": true, "einde": true, "eind": true}

// ParseNodeLine parses a node line. The kind "start_end" is accepted for a
// generic terminal: it becomes an end block when its label reads like one
// and a start block otherwise.
func ParseNodeLine(line string) (NodeSpec, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) < 3 || len(parts) > 4 {
		return NodeSpec{}, schema.NewErrorf(schema.ErrCodeParse,
			"node line %q: expected NODE_ID;kind;label[;lane]", line)
	}
	spec := NodeSpec{
		ID:    schema.NormalizeID(parts[0]),
		Label: strings.TrimSpace(parts[2]),
	}
	if len(parts) == 4 {
		spec.Lane = strings.TrimSpace(parts[3])
	}
	if spec.ID == "" {
		return NodeSpec{}, schema.NewErrorf(schema.ErrCodeParse, "node line %q: empty node id", line)
	}

	rawKind := strings.ToLower(strings.TrimSpace(parts[1]))
	if rawKind == "start_end" {
		spec.Kind = schema.KindStart
		if stopLabels[schema.NormalizeText(spec.Label)] {
			spec.Kind = schema.KindEnd
		}
		return spec, nil
	}
	kind, err := schema.ParseBlockKind(rawKind)
	if err != nil {
		return NodeSpec{}, err
	}
	spec.Kind = kind
	return spec, nil
}

// ParseEdgeLine parses an edge line.
func ParseEdgeLine(line string) (EdgeSpec, error) {
	body, label, _ := strings.Cut(strings.TrimSpace(line), ";")
	from, to, ok := strings.Cut(body, "->")
	if !ok {
		return EdgeSpec{}, schema.NewErrorf(schema.ErrCodeParse,
			"edge line %q: expected SOURCE->TARGET[;label]", line)
	}
	spec := EdgeSpec{
		From:  schema.NormalizeID(from),
		To:    schema.NormalizeID(to),
		Label: strings.TrimSpace(label),
	}
	if spec.From == "" || spec.To == "" {
		return EdgeSpec{}, schema.NewErrorf(schema.ErrCodeParse, "edge line %q: empty endpoint", line)
	}
	return spec, nil
}
