package validation

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// Diagram is the read side of a learner-built graph.
type Diagram interface {
	Blocks() []workspace.Block
	Edges() []workspace.Edge
}

// Report is a verdict plus the role assignment it was derived from.
type Report struct {
	Verdict    schema.Verdict
	Assignment Assignment
	Unused     []workspace.BlockID
}

// Validator compares a learner diagram against a stage's expected graph.
// It holds no per-call state and never mutates the diagram.
type Validator struct {
	warnExtras bool
	budget     int
	logger     *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithExtrasCheck toggles warnings for blocks outside the expected flow.
func WithExtrasCheck(enabled bool) Option {
	return func(v *Validator) { v.warnExtras = enabled }
}

// WithSearchBudget overrides the assignment search cap.
func WithSearchBudget(n int) Option {
	return func(v *Validator) { v.budget = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Validator. Extra-block warnings are on by default.
func New(opts ...Option) *Validator {
	v := &Validator{
		warnExtras: true,
		budget:     defaultSearchBudget,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the verdict for d against stage.
func (v *Validator) Validate(d Diagram, stage *schema.Stage) schema.Verdict {
	return v.Evaluate(d, stage).Verdict
}

// Evaluate runs the four grading passes in order: role coverage, structure,
// branches, swimlanes. Reasons keep stage-defined order within each pass.
func (v *Validator) Evaluate(d Diagram, stage *schema.Stage) *Report {
	blocks, edges := d.Blocks(), d.Edges()
	m := newMatcher(stage, blocks, edges, v.budget)
	assign := m.run()

	g := &grader{
		stage:  stage,
		assign: assign,
		blocks: m.blocks,
		index:  m.edges,
		edges:  edges,
		owner:  make(map[workspace.BlockID]string, len(assign)),
	}
	for role, id := range assign {
		g.owner[id] = role
	}

	g.coverage()
	g.structure()
	g.branches()
	g.lanes()

	report := &Report{Assignment: assign}
	for _, b := range blocks {
		if _, ok := g.owner[b.ID]; !ok {
			report.Unused = append(report.Unused, b.ID)
		}
	}
	if v.warnExtras {
		g.extras(blocks, report.Unused)
	}

	report.Verdict = schema.Verdict{
		Passed:   len(g.reasons) == 0,
		Reasons:  g.reasons,
		Warnings: g.warnings,
	}
	v.logger.Debug("diagram graded",
		slog.String("stage_id", stage.ID),
		slog.Int("assigned", len(assign)),
		slog.Int("reasons", len(g.reasons)),
		slog.Int("search_nodes", m.visited),
	)
	return report
}

type grader struct {
	stage  *schema.Stage
	assign Assignment
	blocks map[workspace.BlockID]workspace.Block
	index  edgeIndex
	edges  []workspace.Edge
	owner  map[workspace.BlockID]string // block → role

	reasons  []schema.Reason
	warnings []schema.Reason
}

func (g *grader) fail(cat schema.ReasonCategory, code, subject, format string, args ...any) {
	g.reasons = append(g.reasons, schema.Reason{
		Category: cat, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...),
	})
}

func (g *grader) warn(code, subject, format string, args ...any) {
	g.warnings = append(g.warnings, schema.Reason{
		Category: schema.CategoryExtra, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...),
	})
}

func (g *grader) isBranchSource(roleID string) bool {
	r, ok := g.stage.Role(roleID)
	return ok && r.Kind.RequiresCondition()
}

func (g *grader) coverage() {
	for _, r := range g.stage.Roles {
		if _, ok := g.assign[r.ID]; ok {
			continue
		}
		g.fail(schema.CategoryCoverage, schema.ReasonMissingNode, r.ID,
			"missing node: %s needs a %s block%s", r.ID, r.Kind, describeRole(g.stage, r))
	}
}

func (g *grader) structure() {
	for _, e := range g.stage.Edges {
		if g.isBranchSource(e.From) {
			continue
		}
		src, okS := g.assign[e.From]
		dst, okD := g.assign[e.To]
		if !okS || !okD {
			continue
		}
		if !g.index.has(src, dst, false, "") {
			g.fail(schema.CategoryStructure, schema.ReasonMissingEdge, e.From,
				"missing edge: %s -> %s", e.From, e.To)
		}
	}

	// Edges between graded blocks that the stage does not ask for. Sorted by
	// stage role order so block ids never influence the report.
	type extra struct {
		from, to  int
		condition string
		msg       string
		subject   string
	}
	var extras []extra
	for _, e := range g.edges {
		fromRole, okS := g.owner[e.Source]
		toRole, okD := g.owner[e.Target]
		if !okS || !okD || g.expectsAny(fromRole, toRole) {
			continue
		}
		label := ""
		if e.Condition != "" {
			label = fmt.Sprintf(" (%q)", e.Condition)
		}
		extras = append(extras, extra{
			from:      roleIndex(g.stage, fromRole),
			to:        roleIndex(g.stage, toRole),
			condition: schema.NormalizeText(e.Condition),
			msg:       fmt.Sprintf("unexpected edge: %s -> %s%s", fromRole, toRole, label),
			subject:   fromRole,
		})
	}
	sort.SliceStable(extras, func(i, j int) bool {
		a, b := extras[i], extras[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.to != b.to {
			return a.to < b.to
		}
		return a.condition < b.condition
	})
	for _, x := range extras {
		g.fail(schema.CategoryStructure, schema.ReasonUnexpectedEdge, x.subject, "%s", x.msg)
	}
}

// expectsAny reports whether the stage has any required edge from→to,
// whatever its condition.
func (g *grader) expectsAny(from, to string) bool {
	for _, e := range g.stage.Edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

func (g *grader) branches() {
	cited := make(map[workspace.EdgeID]bool)
	for _, e := range g.stage.Edges {
		if !g.isBranchSource(e.From) {
			continue
		}
		src, okS := g.assign[e.From]
		dst, okD := g.assign[e.To]
		if !okS || !okD {
			continue
		}
		if g.index.has(src, dst, true, e.Condition) {
			continue
		}
		if got := g.otherConditions(src, dst, e.From, e.To); len(got) > 0 {
			wrong := got[0]
			for _, o := range got {
				if !cited[o.ID] {
					wrong = o
					break
				}
			}
			cited[wrong.ID] = true
			g.fail(schema.CategoryBranch, schema.ReasonWrongBranch, e.From,
				"wrong branch label: %s -> %s is labelled %q; expected %q", e.From, e.To, wrong.Condition, e.Condition)
			continue
		}
		g.fail(schema.CategoryBranch, schema.ReasonMissingBranch, e.From,
			"missing branch: decision %s has no %q branch to %s", e.From, e.Condition, e.To)
	}

	// Branch labels no expected edge between the two roles asks for, beyond
	// those already reported as wrong labels.
	type stray struct {
		from, to  int
		condition string
		fromRole  string
		toRole    string
		label     string
	}
	var strays []stray
	for _, e := range g.edges {
		if cited[e.ID] {
			continue
		}
		fromRole, okS := g.owner[e.Source]
		toRole, okD := g.owner[e.Target]
		if !okS || !okD || !g.isBranchSource(fromRole) || !g.expectsAny(fromRole, toRole) {
			continue
		}
		if g.expectsBranch(fromRole, toRole, e.Condition) {
			continue
		}
		strays = append(strays, stray{
			from:      roleIndex(g.stage, fromRole),
			to:        roleIndex(g.stage, toRole),
			condition: schema.NormalizeText(e.Condition),
			fromRole:  fromRole,
			toRole:    toRole,
			label:     e.Condition,
		})
	}
	sort.SliceStable(strays, func(i, j int) bool {
		a, b := strays[i], strays[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.to != b.to {
			return a.to < b.to
		}
		return a.condition < b.condition
	})
	for _, x := range strays {
		g.fail(schema.CategoryBranch, schema.ReasonExtraBranch, x.fromRole,
			"unexpected branch: %s -> %s (%q)", x.fromRole, x.toRole, x.label)
	}
}

// expectsBranch reports whether the stage has the edge from→to with the
// given condition.
func (g *grader) expectsBranch(from, to, condition string) bool {
	want := schema.NormalizeText(condition)
	for _, e := range g.stage.Edges {
		if e.From == from && e.To == to && schema.NormalizeText(e.Condition) == want {
			return true
		}
	}
	return false
}

// otherConditions returns the workspace edges src→dst whose labels no
// expected branch between the two roles accounts for, ordered by label.
func (g *grader) otherConditions(src, dst workspace.BlockID, from, to string) []workspace.Edge {
	var out []workspace.Edge
	for _, e := range g.edges {
		if e.Source == src && e.Target == dst && !g.expectsBranch(from, to, e.Condition) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return schema.NormalizeText(out[i].Condition) < schema.NormalizeText(out[j].Condition)
	})
	return out
}

func (g *grader) lanes() {
	if !g.stage.HasLanes() {
		return
	}
	for _, r := range g.stage.Roles {
		id, ok := g.assign[r.ID]
		if !ok || r.Lane == "" {
			continue
		}
		got := g.blocks[id].Lane
		if schema.NormalizeText(got) == schema.NormalizeText(r.Lane) {
			continue
		}
		if got == "" {
			got = "no lane"
		}
		g.fail(schema.CategoryLane, schema.ReasonWrongLane, r.ID,
			"wrong lane: %s belongs in lane %s, found in %s", r.ID, r.Lane, got)
	}
}

// extras adds warnings for blocks outside the graded flow and for blocks no
// start block can reach. Warnings never fail a verdict.
func (g *grader) extras(blocks []workspace.Block, unused []workspace.BlockID) {
	// Content order, not id order: ids depend on build history.
	ordered := make([]workspace.Block, 0, len(unused))
	for _, id := range unused {
		ordered = append(ordered, g.blocks[id])
	}
	sortBlocksByContent(ordered)
	for _, b := range ordered {
		g.warn(schema.ReasonUnusedBlock, "",
			"unused block: %s %s is not part of the expected flow", b.Kind, quoteLabel(b.Label))
	}

	reach := reachableFromStarts(blocks, g.edges)
	if reach == nil {
		return
	}
	for _, r := range g.stage.Roles {
		id, ok := g.assign[r.ID]
		if !ok || reach[id] {
			continue
		}
		g.warn(schema.ReasonUnreachable, r.ID,
			"unreachable: %s cannot be reached from a start block", r.ID)
	}
}

func describeRole(stage *schema.Stage, r schema.Role) string {
	s := ""
	if r.Label != "" {
		s = fmt.Sprintf(" labelled %q", r.Label)
	}
	if stage.HasLanes() && r.Lane != "" {
		s += " in lane " + r.Lane
	}
	return s
}

func quoteLabel(label string) string {
	if label == "" {
		return "(unlabelled)"
	}
	return fmt.Sprintf("%q", label)
}

func roleIndex(stage *schema.Stage, id string) int {
	for i, r := range stage.Roles {
		if r.ID == id {
			return i
		}
	}
	return len(stage.Roles)
}

func sortBlocksByContent(bs []workspace.Block) {
	sort.SliceStable(bs, func(i, j int) bool {
		a, b := bs[i], bs[j]
		if a.Kind != b.Kind {
			return kindRank(a.Kind) < kindRank(b.Kind)
		}
		if na, nb := schema.NormalizeText(a.Label), schema.NormalizeText(b.Label); na != nb {
			return na < nb
		}
		return schema.NormalizeText(a.Lane) < schema.NormalizeText(b.Lane)
	})
}

func kindRank(k schema.BlockKind) int {
	for i, kk := range schema.AllKinds {
		if kk == k {
			return i
		}
	}
	return len(schema.AllKinds)
}
