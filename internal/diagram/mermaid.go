package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
// Lanes become subgraphs; nodes outside every lane are emitted first.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	inLane := make(map[string]bool)
	for _, lane := range model.Lanes {
		for _, id := range lane.NodeIDs {
			inLane[id] = true
		}
	}
	for _, node := range model.Nodes {
		if !inLane[node.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
		}
	}
	for _, lane := range model.Lanes {
		b.WriteString(fmt.Sprintf("    subgraph %s[%q]\n", mermaidSafeID("lane_"+lane.Name), lane.Name))
		for _, id := range lane.NodeIDs {
			if node := findNode(model.Nodes, id); node != nil {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(node)))
			}
		}
		b.WriteString("    end\n")
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef matched fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef wrong_lane fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef unused fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")

	for _, node := range model.Nodes {
		if node.Status != nil && node.Status.Status != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), node.Status.Status))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindDecision:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s([%q])", id, label)
	default: // process
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts an ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel replaces characters Mermaid treats as syntax.
func mermaidEscapeLabel(s string) string {
	return strings.NewReplacer(`"`, "'", "|", "/").Replace(s)
}
