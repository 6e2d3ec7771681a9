package validation

import (
	"fmt"

	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// reachableFromStarts runs a BFS over the learner's edges from every start
// block. It returns nil when the diagram has no start block, in which case
// reachability is meaningless and the coverage pass already complains.
func reachableFromStarts(blocks []workspace.Block, edges []workspace.Edge) map[workspace.BlockID]bool {
	adj := make(map[workspace.BlockID][]workspace.BlockID, len(blocks))
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	reach := make(map[workspace.BlockID]bool, len(blocks))
	var queue []workspace.BlockID
	for _, b := range blocks {
		if b.Kind == schema.KindStart {
			reach[b.ID] = true
			queue = append(queue, b.ID)
		}
	}
	if len(queue) == 0 {
		return nil
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adj[node] {
			if !reach[next] {
				reach[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reach
}

// checkStageGraph warns about roles that no start role reaches through the
// expected edges, and about non-end roles with no way forward. Invalid
// references are skipped; the semantic pass reports them.
func checkStageGraph(st *schema.Stage) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(st.Roles))
	for _, r := range st.Roles {
		ids[r.ID] = true
	}
	adj := make(map[string][]string, len(st.Roles))
	for _, e := range st.Edges {
		if ids[e.From] && ids[e.To] {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}

	reach := make(map[string]bool, len(st.Roles))
	var queue []string
	for _, r := range st.Roles {
		if r.Kind == schema.KindStart {
			reach[r.ID] = true
			queue = append(queue, r.ID)
		}
	}
	if len(queue) == 0 {
		result.AddWarning("roles", schema.ErrCodeValidation, "stage has no start role")
		return result
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adj[node] {
			if !reach[next] {
				reach[next] = true
				queue = append(queue, next)
			}
		}
	}

	for i, r := range st.Roles {
		path := fmt.Sprintf("roles[%d]", i)
		if !reach[r.ID] {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("role %q is unreachable from any start role", r.ID))
		}
		if r.Kind != schema.KindEnd && len(adj[r.ID]) == 0 {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("role %q has no outgoing edge", r.ID))
		}
	}
	return result
}
