package schema

// ReasonCategory groups verdict reasons in the order they are reported.
type ReasonCategory string

const (
	CategoryCoverage  ReasonCategory = "coverage"
	CategoryStructure ReasonCategory = "structure"
	CategoryBranch    ReasonCategory = "branch"
	CategoryLane      ReasonCategory = "lane"
	CategoryExtra     ReasonCategory = "extra"
	CategoryGame      ReasonCategory = "game"
)

// Reason codes attached to verdict reasons and warnings.
const (
	ReasonMissingNode    = "MISSING_NODE"
	ReasonMissingEdge    = "MISSING_EDGE"
	ReasonUnexpectedEdge = "UNEXPECTED_EDGE"
	ReasonMissingBranch  = "MISSING_BRANCH"
	ReasonWrongBranch    = "WRONG_BRANCH_LABEL"
	ReasonExtraBranch    = "UNEXPECTED_BRANCH"
	ReasonWrongLane      = "WRONG_LANE"
	ReasonUnusedBlock    = "UNUSED_BLOCK"
	ReasonUnreachable    = "UNREACHABLE_BLOCK"
	ReasonStrayEdge      = "STRAY_EDGE"
	ReasonGameComplete   = "GAME_COMPLETE"
)

// Reason is one human-readable mismatch between a workspace and a stage.
// Subject names the stage role the reason is about, when there is one.
type Reason struct {
	Category ReasonCategory `json:"category"`
	Code     string         `json:"code"`
	Subject  string         `json:"subject,omitempty"`
	Message  string         `json:"message"`
}

// Verdict is the transient result of one validation call. A failing
// diagram is a normal result, never an error.
type Verdict struct {
	Passed   bool     `json:"passed"`
	Reasons  []Reason `json:"reasons,omitempty"`
	Warnings []Reason `json:"warnings,omitempty"`
}

// Messages returns the reason messages in report order.
func (v *Verdict) Messages() []string {
	out := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		out[i] = r.Message
	}
	return out
}

// ReasonsIn returns the reasons of one category.
func (v *Verdict) ReasonsIn(cat ReasonCategory) []Reason {
	var out []Reason
	for _, r := range v.Reasons {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}
