package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for an overlay status.
func statusTag(status string) string {
	switch status {
	case StatusMatched:
		return "[OK]"
	case StatusWrongLane:
		return "[LANE?]"
	case StatusUnused:
		return "[UNUSED]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text diagram: one row of boxes per
// BFS level from the start blocks, followed by the full edge list, since
// branches and loops do not fit a strictly vertical layout.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}
	if len(model.Nodes) == 0 {
		b.WriteString("(empty)\n")
		return b.String()
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\nEdges:\n")
		for _, edge := range model.Edges {
			label := ""
			if edge.Label != "" {
				label = fmt.Sprintf(" [%s]", edge.Label)
			}
			b.WriteString(fmt.Sprintf("  %s ─→ %s%s\n", edge.From, edge.To, label))
		}
	}

	if len(model.Lanes) > 0 {
		b.WriteString("\nLanes:\n")
		for _, lane := range model.Lanes {
			b.WriteString(fmt.Sprintf("  %s: %s\n", lane.Name, strings.Join(lane.NodeIDs, ", ")))
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// kindGlyph marks the block shape inside an ASCII box.
func kindGlyph(k NodeKind) string {
	switch k {
	case NodeKindStart:
		return "(start)"
	case NodeKindEnd:
		return "(end)"
	case NodeKindDecision:
		return "<decision>"
	default:
		return ""
	}
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}
	if g := kindGlyph(node.Kind); g != "" {
		contentLines = append(contentLines, g)
	}
	if node.Lane != "" {
		contentLines = append(contentLines, "lane: "+node.Lane)
	}
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			if node.Status.Role != "" {
				tag += " " + node.Status.Role
			}
			contentLines = append(contentLines, tag)
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		if n := len([]rune(line)); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len([]rune(content)))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
