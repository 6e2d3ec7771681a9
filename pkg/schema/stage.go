package schema

import (
	"sort"
	"strings"
)

// BlockKind enumerates the flowchart block shapes a learner can place.
type BlockKind string

const (
	KindStart    BlockKind = "start"
	KindProcess  BlockKind = "process"
	KindDecision BlockKind = "decision"
	KindEnd      BlockKind = "end"
)

// AllKinds lists every block kind in palette order.
var AllKinds = []BlockKind{KindStart, KindProcess, KindDecision, KindEnd}

// RequiresCondition reports whether outgoing edges of this kind need a branch label.
func (k BlockKind) RequiresCondition() bool {
	return k == KindDecision
}

// Valid reports whether k is a known block kind.
func (k BlockKind) Valid() bool {
	switch k {
	case KindStart, KindProcess, KindDecision, KindEnd:
		return true
	}
	return false
}

// ParseBlockKind parses a case-insensitive kind name.
func ParseBlockKind(s string) (BlockKind, error) {
	k := BlockKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", NewErrorf(ErrCodeInvalidKind,
			"unknown block kind %q: must be one of start, process, decision, end", s)
	}
	return k, nil
}

// Role is one node of a stage's expected graph. Roles are matched against
// placed blocks by kind; lane and label refine the match.
type Role struct {
	ID    string    `json:"id"`
	Kind  BlockKind `json:"kind"`
	Label string    `json:"label,omitempty"`
	Lane  string    `json:"lane,omitempty"`
}

// ExpectedEdge is a required connection between two roles. Condition is the
// branch label and is only meaningful when From is a decision role.
type ExpectedEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// Stage is the static, read-only definition of one level.
type Stage struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Task         string         `json:"task"`
	LearningGoal string         `json:"learning_goal,omitempty"`
	Hint         string         `json:"hint,omitempty"`
	Badge        string         `json:"badge"`
	Palette      []BlockKind    `json:"palette,omitempty"`
	Lanes        []string       `json:"lanes,omitempty"`
	Roles        []Role         `json:"roles"`
	Edges        []ExpectedEdge `json:"edges"`
	StrictLabels bool           `json:"strict_labels,omitempty"`
}

// PaletteKinds returns the placeable kinds: the explicit palette, or the
// kinds used by the stage's roles when no palette is declared.
func (s *Stage) PaletteKinds() []BlockKind {
	if len(s.Palette) > 0 {
		return s.Palette
	}
	used := make(map[BlockKind]bool, len(AllKinds))
	for _, r := range s.Roles {
		used[r.Kind] = true
	}
	out := make([]BlockKind, 0, len(used))
	for _, k := range AllKinds {
		if used[k] {
			out = append(out, k)
		}
	}
	return out
}

// Allows reports whether kind k is in the stage palette.
func (s *Stage) Allows(k BlockKind) bool {
	for _, p := range s.PaletteKinds() {
		if p == k {
			return true
		}
	}
	return false
}

// HasLanes reports whether the stage grades swimlane ownership.
func (s *Stage) HasLanes() bool {
	return len(s.Lanes) > 0
}

// Role returns the role with the given id.
func (s *Stage) Role(id string) (Role, bool) {
	for _, r := range s.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// BadgeRule awards an extra badge when its expression evaluates to true
// at the moment a stage is passed. "{stage}" in Name is replaced by the
// passed stage's title.
type BadgeRule struct {
	Name   string `json:"name"`
	Engine string `json:"engine"` // expr | cel | jq
	When   string `json:"when"`
}

// StagePack is the serialisable form of an ordered stage catalog.
type StagePack struct {
	Name   string      `json:"name,omitempty"`
	Stages []Stage     `json:"stages"`
	Rules  []BadgeRule `json:"rules,omitempty"`
}

// NormalizeText lowercases and collapses whitespace so labels compare loosely.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeID upper-cases an identifier and replaces spaces with underscores.
func NormalizeID(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_")
}

// SortedKeys returns the keys of a string-keyed set in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
