package validation

import (
	"fmt"

	"github.com/rendis/flowgame/pkg/schema"
)

// PackValidator runs the stage pack pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (role refs, branch labels, lanes, palette)
// 3. Graph (reachability of the expected flow)
type PackValidator struct {
	jsonSchema *StageSchemaValidator
}

// NewPackValidator creates a PackValidator.
func NewPackValidator() (*PackValidator, error) {
	jsv, err := NewStageSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &PackValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline. Structural errors short-circuit.
func (pv *PackValidator) Validate(pack *schema.StagePack) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if pack == nil {
		result.AddError("/", schema.ErrCodeValidation, "stage pack is nil")
		return result
	}

	result.Merge("", structural(pv.jsonSchema.ValidatePack(pack)))
	if !result.Valid() {
		return result
	}

	seen := make(map[string]bool, len(pack.Stages))
	for i := range pack.Stages {
		st := &pack.Stages[i]
		path := fmt.Sprintf("stages[%d]", i)
		if seen[st.ID] {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate stage id %q", st.ID))
		}
		seen[st.ID] = true
		result.Merge(path, ValidateStage(st))
	}
	return result
}

// ValidateStage checks one stage definition: semantic rules first, then the
// graph pass when the references are sound.
func ValidateStage(st *schema.Stage) *schema.ValidationResult {
	result := validateStageSemantic(st)
	if result.Valid() {
		result.Merge("", checkStageGraph(st))
	}
	return result
}

// structural converts a schema error into ValidationResult issues.
func structural(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}
	ge, ok := err.(*schema.GameError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := ge.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", ge.Code, ge.Message)
	return result
}
