package diagram

import (
	"github.com/rendis/flowgame/internal/validation"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// WorkspaceView is the read side of a workspace.
type WorkspaceView interface {
	Blocks() []workspace.Block
	Edges() []workspace.Edge
}

// FromWorkspace builds a model of the learner's diagram. Blocks keep
// placement order and edges keep creation order. When st declares lanes,
// blocks are grouped by lane in the stage's lane order.
func FromWorkspace(ws WorkspaceView, st *schema.Stage) *DiagramModel {
	m := &DiagramModel{Title: "Workspace"}
	var lanes []string
	if st != nil {
		m.Title = st.Title
		lanes = st.Lanes
	}

	for _, b := range ws.Blocks() {
		label := string(b.ID)
		if b.Label != "" {
			label += ": " + b.Label
		}
		m.Nodes = append(m.Nodes, &Node{ID: string(b.ID), Label: label, Kind: kindOf(b.Kind), Lane: b.Lane})
	}
	for _, e := range ws.Edges() {
		m.Edges = append(m.Edges, Edge{From: string(e.Source), To: string(e.Target), Label: e.Condition})
	}
	m.Lanes = groupLanes(m.Nodes, lanes)
	m.Levels = buildLevels(m.Nodes, m.Edges)
	return m
}

// FromStage builds a model of a stage's expected solution.
func FromStage(st *schema.Stage) *DiagramModel {
	m := &DiagramModel{Title: st.Title + " (solution)"}
	for _, r := range st.Roles {
		label := r.Label
		if label == "" {
			label = r.ID
		}
		m.Nodes = append(m.Nodes, &Node{ID: r.ID, Label: label, Kind: kindOf(r.Kind), Lane: r.Lane})
	}
	for _, e := range st.Edges {
		m.Edges = append(m.Edges, Edge{From: e.From, To: e.To, Label: e.Condition})
	}
	m.Lanes = groupLanes(m.Nodes, st.Lanes)
	m.Levels = buildLevels(m.Nodes, m.Edges)
	return m
}

// ApplyReport overlays a grading report on a workspace model: matched
// blocks carry their role, unused blocks are marked, and matched blocks in
// the wrong lane are flagged.
func ApplyReport(m *DiagramModel, rep *validation.Report, st *schema.Stage) {
	if rep == nil {
		return
	}
	for role, id := range rep.Assignment {
		n := findNode(m.Nodes, string(id))
		if n == nil {
			continue
		}
		status := StatusMatched
		if r, ok := st.Role(role); ok && st.HasLanes() && r.Lane != "" &&
			schema.NormalizeText(r.Lane) != schema.NormalizeText(n.Lane) {
			status = StatusWrongLane
		}
		n.Status = &StatusOverlay{Status: status, Role: role}
	}
	for _, id := range rep.Unused {
		if n := findNode(m.Nodes, string(id)); n != nil {
			n.Status = &StatusOverlay{Status: StatusUnused}
		}
	}
}

// groupLanes assigns nodes to the declared lanes. Nodes with an undeclared
// or empty lane stay outside every lane.
func groupLanes(nodes []*Node, declared []string) []Lane {
	if len(declared) == 0 {
		return nil
	}
	lanes := make([]Lane, len(declared))
	idx := make(map[string]int, len(declared))
	for i, name := range declared {
		lanes[i] = Lane{Name: name}
		idx[schema.NormalizeText(name)] = i
	}
	for _, n := range nodes {
		if i, ok := idx[schema.NormalizeText(n.Lane)]; ok {
			lanes[i].NodeIDs = append(lanes[i].NodeIDs, n.ID)
		}
	}
	return lanes
}

// buildLevels layers nodes by BFS distance from the start nodes. Loops
// never push a node deeper than its first visit. Nodes no start reaches
// form a final level.
func buildLevels(nodes []*Node, edges []Edge) [][]string {
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	depth := make(map[string]int, len(nodes))
	var queue []string
	for _, n := range nodes {
		if n.Kind == NodeKindStart {
			depth[n.ID] = 0
			queue = append(queue, n.ID)
		}
	}
	maxDepth := -1
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
		for _, next := range adj[id] {
			if _, seen := depth[next]; !seen {
				depth[next] = depth[id] + 1
				queue = append(queue, next)
			}
		}
	}

	levels := make([][]string, maxDepth+1)
	var stray []string
	for _, n := range nodes {
		d, ok := depth[n.ID]
		if !ok {
			stray = append(stray, n.ID)
			continue
		}
		levels[d] = append(levels[d], n.ID)
	}
	if len(stray) > 0 {
		levels = append(levels, stray)
	}
	return levels
}
