package expressions

import (
	"context"
	"strings"

	"github.com/rendis/flowgame/pkg/schema"
)

// StageFacts describes the stage that was just passed.
type StageFacts struct {
	Index int
	ID    string
	Title string
	Badge string
}

// ProgressFacts describes the progression after the pass was recorded.
type ProgressFacts struct {
	Completed bool
	Passed    int
	Total     int
	Badges    []string
}

// Facts is the input every badge rule sees.
type Facts struct {
	Stage    StageFacts
	Attempts int
	Progress ProgressFacts
}

// Map renders the facts as the nested map the engines evaluate against:
//
//	{stage: {index, id, title, badge}, attempts, progress: {completed, passed, total, badges}}
func (f Facts) Map() map[string]any {
	badges := make([]any, len(f.Progress.Badges))
	for i, b := range f.Progress.Badges {
		badges[i] = b
	}
	return map[string]any{
		"stage": map[string]any{
			"index": f.Stage.Index,
			"id":    f.Stage.ID,
			"title": f.Stage.Title,
			"badge": f.Stage.Badge,
		},
		"attempts": f.Attempts,
		"progress": map[string]any{
			"completed": f.Progress.Completed,
			"passed":    f.Progress.Passed,
			"total":     f.Progress.Total,
			"badges":    badges,
		},
	}
}

// RuleEvaluator decides which bonus badges a stage pass earns.
type RuleEvaluator struct {
	registry *Registry
}

// NewRuleEvaluator creates a RuleEvaluator over a fresh engine registry.
func NewRuleEvaluator() (*RuleEvaluator, error) {
	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return &RuleEvaluator{registry: reg}, nil
}

// Matches evaluates one rule against facts.
func (re *RuleEvaluator) Matches(ctx context.Context, rule schema.BadgeRule, facts Facts) (bool, error) {
	engine, err := re.registry.Get(rule.Engine)
	if err != nil {
		return false, err
	}
	out, err := engine.Evaluate(ctx, rule.When, facts.Map())
	if err != nil {
		return false, err
	}
	return truthy(rule.When, out)
}

// BadgeName expands "{stage}" in a rule name with the passed stage's title.
func BadgeName(rule schema.BadgeRule, facts Facts) string {
	return strings.ReplaceAll(rule.Name, "{stage}", facts.Stage.Title)
}
