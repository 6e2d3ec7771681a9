package validation

import (
	"fmt"

	"github.com/rendis/flowgame/pkg/schema"
)

// validateStageSemantic checks what JSON Schema cannot: unique role ids,
// edge references, branch labelling rules and lane declarations.
func validateStageSemantic(st *schema.Stage) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	roles := make(map[string]schema.Role, len(st.Roles))
	for i, r := range st.Roles {
		path := fmt.Sprintf("roles[%d]", i)
		if r.ID == "" {
			result.AddError(path+".id", schema.ErrCodeValidation, "role id is required")
			continue
		}
		if _, dup := roles[r.ID]; dup {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate role id %q", r.ID))
			continue
		}
		if !r.Kind.Valid() {
			result.AddError(path+".kind", schema.ErrCodeInvalidKind,
				fmt.Sprintf("unknown block kind %q", r.Kind))
		}
		roles[r.ID] = r
	}

	lanes := make(map[string]bool, len(st.Lanes))
	for i, l := range st.Lanes {
		key := schema.NormalizeText(l)
		if lanes[key] {
			result.AddError(fmt.Sprintf("lanes[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("duplicate lane %q", l))
		}
		lanes[key] = true
	}
	if st.HasLanes() {
		for i, r := range st.Roles {
			if r.Lane != "" && !lanes[schema.NormalizeText(r.Lane)] {
				result.AddError(fmt.Sprintf("roles[%d].lane", i), schema.ErrCodeValidation,
					fmt.Sprintf("lane %q is not declared in lanes", r.Lane))
			}
		}
	} else {
		for i, r := range st.Roles {
			if r.Lane != "" {
				result.AddWarning(fmt.Sprintf("roles[%d].lane", i), schema.ErrCodeValidation,
					fmt.Sprintf("lane %q is ignored: stage declares no lanes", r.Lane))
			}
		}
	}

	for i, k := range st.Palette {
		if !k.Valid() {
			result.AddError(fmt.Sprintf("palette[%d]", i), schema.ErrCodeInvalidKind,
				fmt.Sprintf("unknown block kind %q", k))
		}
	}
	for i, r := range st.Roles {
		if r.Kind.Valid() && !st.Allows(r.Kind) {
			result.AddError(fmt.Sprintf("roles[%d].kind", i), schema.ErrCodeInvalidKind,
				fmt.Sprintf("role %q needs kind %q, which the palette does not offer", r.ID, r.Kind))
		}
	}

	validateStageEdges(st, roles, result)
	return result
}

func validateStageEdges(st *schema.Stage, roles map[string]schema.Role, result *schema.ValidationResult) {
	type key struct{ from, to, cond string }
	seen := make(map[key]bool, len(st.Edges))
	branchConds := make(map[string]map[string]bool)

	for i, e := range st.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		from, okFrom := roles[e.From]
		if !okFrom {
			result.AddError(path+".from", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent role %q", e.From))
		}
		if _, ok := roles[e.To]; !ok {
			result.AddError(path+".to", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent role %q", e.To))
		}
		if e.From == e.To {
			result.AddError(path, schema.ErrCodeSelfLoop,
				fmt.Sprintf("role %q cannot connect to itself", e.From))
		}
		if !okFrom {
			continue
		}

		cond := schema.NormalizeText(e.Condition)
		k := key{e.From, e.To, cond}
		if seen[k] {
			result.AddError(path, schema.ErrCodeDuplicateEdge,
				fmt.Sprintf("edge %s -> %s is listed twice", e.From, e.To))
		}
		seen[k] = true

		if from.Kind.RequiresCondition() {
			if cond == "" {
				result.AddError(path+".condition", schema.ErrCodeMissingCondition,
					fmt.Sprintf("branch from decision %q needs a condition", e.From))
				continue
			}
			if branchConds[e.From] == nil {
				branchConds[e.From] = make(map[string]bool)
			}
			if branchConds[e.From][cond] {
				result.AddError(path+".condition", schema.ErrCodeValidation,
					fmt.Sprintf("decision %q uses condition %q twice", e.From, e.Condition))
			}
			branchConds[e.From][cond] = true
		} else if cond != "" {
			result.AddError(path+".condition", schema.ErrCodeValidation,
				fmt.Sprintf("only decision roles take a condition; %q is %s", e.From, from.Kind))
		}
	}

	for i, r := range st.Roles {
		if r.Kind.RequiresCondition() && len(branchConds[r.ID]) < 2 {
			result.AddError(fmt.Sprintf("roles[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("decision %q needs at least two labelled branches", r.ID))
		}
	}
}
