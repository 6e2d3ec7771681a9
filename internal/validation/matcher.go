package validation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// defaultSearchBudget caps the number of search nodes visited per match.
// Stage graphs are small; the cap only matters for pathological workspaces.
const defaultSearchBudget = 200_000

// Assignment maps stage role ids to the workspace blocks chosen for them.
// Roles without a suitable block are absent.
type Assignment map[string]workspace.BlockID

// edgeIndex answers "is there an edge from a to b, and with which conditions".
type edgeIndex map[[2]workspace.BlockID][]string

func indexEdges(edges []workspace.Edge) edgeIndex {
	idx := make(edgeIndex, len(edges))
	for _, e := range edges {
		k := [2]workspace.BlockID{e.Source, e.Target}
		idx[k] = append(idx[k], schema.NormalizeText(e.Condition))
	}
	return idx
}

// has reports whether an edge src→dst exists. When branch is true the
// condition must match; otherwise any condition is accepted.
func (idx edgeIndex) has(src, dst workspace.BlockID, branch bool, condition string) bool {
	conds, ok := idx[[2]workspace.BlockID{src, dst}]
	if !ok {
		return false
	}
	if !branch {
		return true
	}
	want := schema.NormalizeText(condition)
	for _, c := range conds {
		if c == want {
			return true
		}
	}
	return false
}

// matcher finds the role assignment that covers the most roles, then
// satisfies the most required edges, then matches the most lanes and labels.
// Equal scores go to the assignment with the fewest unasked-for edges, then
// to the smallest content key, so block ids never pick the winner. Roles
// with the fewest candidates are assigned first so uniquely-determined roles
// constrain the rest.
type matcher struct {
	stage   *schema.Stage
	blocks  map[workspace.BlockID]workspace.Block
	edges   edgeIndex
	wsEdges []workspace.Edge
	reach   map[workspace.BlockID]bool
	budget  int

	order      []int                      // role indices in search order
	candidates [][]workspace.BlockID      // per search position
	decided    [][]int                    // expected-edge indices decided at each search position
	remaining  []int                      // expected edges decided after each position
	branch     []bool                     // per expected edge: source role is a decision
	roleIdx    map[string]int             // role id → stage index
	pos        []int                      // role index → search position
	expected   map[[2]int]map[string]bool // role pair → normalised conditions

	wRole, wEdge, wLane int

	used      map[workspace.BlockID]bool
	current   []workspace.BlockID // per role index; "" when unassigned
	best      []workspace.BlockID
	bestSc    int
	bestExtra int
	bestKey   string
	visited   int
}

func newMatcher(stage *schema.Stage, blocks []workspace.Block, edges []workspace.Edge, budget int) *matcher {
	if budget <= 0 {
		budget = defaultSearchBudget
	}
	m := &matcher{
		stage:   stage,
		blocks:  make(map[workspace.BlockID]workspace.Block, len(blocks)),
		edges:   indexEdges(edges),
		wsEdges: edges,
		reach:   reachableFromStarts(blocks, edges),
		budget:  budget,
		roleIdx: make(map[string]int, len(stage.Roles)),
		used:    make(map[workspace.BlockID]bool, len(blocks)),
		current: make([]workspace.BlockID, len(stage.Roles)),
		bestSc:  -1,
	}
	for _, b := range blocks {
		m.blocks[b.ID] = b
	}
	for i, r := range stage.Roles {
		m.roleIdx[r.ID] = i
	}

	nRoles, nEdges := len(stage.Roles), len(stage.Edges)
	m.wLane = nRoles + 1
	m.wEdge = (nRoles + 1) * m.wLane
	m.wRole = (nEdges + 1) * m.wEdge

	perRole := make([][]workspace.BlockID, nRoles)
	for i, r := range stage.Roles {
		perRole[i] = m.candidatesFor(r, blocks)
	}

	m.order = make([]int, nRoles)
	for i := range m.order {
		m.order[i] = i
	}
	sort.SliceStable(m.order, func(a, b int) bool {
		return len(perRole[m.order[a]]) < len(perRole[m.order[b]])
	})

	m.pos = make([]int, nRoles)
	m.candidates = make([][]workspace.BlockID, nRoles)
	for p, ri := range m.order {
		m.pos[ri] = p
		m.candidates[p] = perRole[ri]
	}

	m.branch = make([]bool, nEdges)
	m.decided = make([][]int, nRoles)
	m.expected = make(map[[2]int]map[string]bool, nEdges)
	for ei, e := range stage.Edges {
		from, okFrom := m.roleIdx[e.From]
		to, okTo := m.roleIdx[e.To]
		if !okFrom || !okTo {
			continue
		}
		k := [2]int{from, to}
		if m.expected[k] == nil {
			m.expected[k] = make(map[string]bool)
		}
		m.expected[k][schema.NormalizeText(e.Condition)] = true
		m.branch[ei] = stage.Roles[from].Kind.RequiresCondition()
		at := max(m.pos[from], m.pos[to])
		m.decided[at] = append(m.decided[at], ei)
	}
	m.remaining = make([]int, nRoles)
	for p := nRoles - 1; p >= 0; p-- {
		if p+1 < nRoles {
			m.remaining[p] = m.remaining[p+1] + len(m.decided[p+1])
		}
	}
	return m
}

// candidatesFor lists the blocks that may play role r, best-ranked first.
func (m *matcher) candidatesFor(r schema.Role, blocks []workspace.Block) []workspace.BlockID {
	label := schema.NormalizeText(r.Label)
	var out []workspace.Block
	for _, b := range blocks {
		if b.Kind != r.Kind {
			continue
		}
		if m.stage.StrictLabels && label != "" && schema.NormalizeText(b.Label) != label {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if la, lb := m.laneMatch(r, a), m.laneMatch(r, b); la != lb {
			return la
		}
		if la, lb := labelMatch(r, a), labelMatch(r, b); la != lb {
			return la
		}
		if na, nb := schema.NormalizeText(a.Label), schema.NormalizeText(b.Label); na != nb {
			return na < nb
		}
		if na, nb := schema.NormalizeText(a.Lane), schema.NormalizeText(b.Lane); na != nb {
			return na < nb
		}
		return blockOrdinal(a.ID) < blockOrdinal(b.ID)
	})
	ids := make([]workspace.BlockID, len(out))
	for i, b := range out {
		ids[i] = b.ID
	}
	return ids
}

func (m *matcher) laneMatch(r schema.Role, b workspace.Block) bool {
	if !m.stage.HasLanes() || r.Lane == "" {
		return false
	}
	return schema.NormalizeText(r.Lane) == schema.NormalizeText(b.Lane)
}

func labelMatch(r schema.Role, b workspace.Block) bool {
	return r.Label != "" && schema.NormalizeText(r.Label) == schema.NormalizeText(b.Label)
}

// run performs the bounded search and returns the best assignment.
func (m *matcher) run() Assignment {
	m.search(0, 0)
	out := make(Assignment, len(m.best))
	for ri, id := range m.best {
		if id != "" {
			out[m.stage.Roles[ri].ID] = id
		}
	}
	return out
}

func (m *matcher) search(p, score int) {
	if p == len(m.order) {
		m.finish(score)
		return
	}
	if m.visited >= m.budget && m.best != nil {
		return
	}
	m.visited++

	// Equal bounds are still explored: a tie can win on the tie-breakers.
	bound := score + (len(m.order)-p)*(m.wRole+m.wLane+1) + (m.remaining[p]+len(m.decided[p]))*m.wEdge
	if bound < m.bestSc {
		return
	}

	ri := m.order[p]
	role := m.stage.Roles[ri]
	for _, id := range m.candidates[p] {
		if m.used[id] {
			continue
		}
		m.used[id] = true
		m.current[ri] = id

		b := m.blocks[id]
		delta := m.wRole
		if m.laneMatch(role, b) {
			delta += m.wLane
		}
		if labelMatch(role, b) {
			delta++
		}
		delta += m.satisfiedAt(p) * m.wEdge
		m.search(p+1, score+delta)

		m.current[ri] = ""
		m.used[id] = false
	}

	// Leaving the role unassigned is always an option.
	m.search(p+1, score+m.satisfiedAt(p)*m.wEdge)
}

// finish records a complete assignment when it beats the best so far.
func (m *matcher) finish(score int) {
	if score < m.bestSc {
		return
	}
	extra, key := m.signature()
	if score == m.bestSc && (extra > m.bestExtra || (extra == m.bestExtra && key >= m.bestKey)) {
		return
	}
	m.bestSc, m.bestExtra, m.bestKey = score, extra, key
	m.best = append(m.best[:0], m.current...)
}

// signature counts the unasked-for edges between assigned blocks and
// describes the current assignment by content only: role indices, block
// labels, lanes, reachability, unmet expected edges and unasked-for edges.
// Two assignments with the same key grade identically.
func (m *matcher) signature() (int, string) {
	owner := make(map[workspace.BlockID]int, len(m.current))
	parts := make([]string, 0, len(m.current)+len(m.wsEdges))
	for ri, id := range m.current {
		if id == "" {
			parts = append(parts, "m\x00"+strconv.Itoa(ri))
			continue
		}
		owner[id] = ri
		b := m.blocks[id]
		parts = append(parts, "r\x00"+strconv.Itoa(ri)+"\x00"+schema.NormalizeText(b.Label)+
			"\x00"+schema.NormalizeText(b.Lane)+"\x00"+strconv.FormatBool(m.reach[id]))
	}
	for ei := range m.stage.Edges {
		if !m.satisfied(ei) {
			parts = append(parts, "e\x00"+strconv.Itoa(ei))
		}
	}
	extra := 0
	for _, e := range m.wsEdges {
		from, okS := owner[e.Source]
		to, okD := owner[e.Target]
		if !okS || !okD || m.asked(from, to, e.Condition) {
			continue
		}
		extra++
		parts = append(parts, "u\x00"+strconv.Itoa(from)+"\x00"+strconv.Itoa(to)+"\x00"+schema.NormalizeText(e.Condition))
	}
	sort.Strings(parts)
	return extra, strings.Join(parts, "\x01")
}

// asked reports whether the stage expects an edge between the two roles.
// Edges leaving a decision must also carry one of the expected conditions.
func (m *matcher) asked(from, to int, condition string) bool {
	conds, ok := m.expected[[2]int{from, to}]
	if !ok {
		return false
	}
	if !m.stage.Roles[from].Kind.RequiresCondition() {
		return true
	}
	return conds[schema.NormalizeText(condition)]
}

// satisfied reports whether expected edge ei holds under the current
// assignment.
func (m *matcher) satisfied(ei int) bool {
	e := m.stage.Edges[ei]
	from, okFrom := m.roleIdx[e.From]
	to, okTo := m.roleIdx[e.To]
	if !okFrom || !okTo {
		return false
	}
	src, dst := m.current[from], m.current[to]
	if src == "" || dst == "" {
		return false
	}
	return m.edges.has(src, dst, m.branch[ei], e.Condition)
}

// satisfiedAt counts the expected edges decided at search position p that
// the current partial assignment satisfies.
func (m *matcher) satisfiedAt(p int) int {
	n := 0
	for _, ei := range m.decided[p] {
		if m.satisfied(ei) {
			n++
		}
	}
	return n
}

// blockOrdinal extracts the numeric part of a "B<n>" id. It only orders the
// search; the winner is picked by content.
func blockOrdinal(id workspace.BlockID) int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(id), "B"))
	if err != nil {
		return 1 << 30
	}
	return n
}
