package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/flowgame/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const stagePackSchemaURL = "https://flowgame.dev/schemas/stage-pack.json"

// stagePackSchemaJSON is the JSON Schema for stage pack files.
const stagePackSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowgame.dev/schemas/stage-pack.json",
  "type": "object",
  "required": ["stages"],
  "properties": {
    "name": { "type": "string" },
    "stages": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/stage" }
    },
    "rules": {
      "type": "array",
      "items": { "$ref": "#/$defs/rule" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "kind": {
      "type": "string",
      "enum": ["start", "process", "decision", "end"]
    },
    "stage": {
      "type": "object",
      "required": ["id", "title", "task", "badge", "roles", "edges"],
      "properties": {
        "id": { "type": "string", "pattern": "^[a-z0-9][a-z0-9_-]*$" },
        "title": { "type": "string", "minLength": 1 },
        "task": { "type": "string", "minLength": 1 },
        "learning_goal": { "type": "string" },
        "hint": { "type": "string" },
        "badge": { "type": "string", "minLength": 1 },
        "palette": {
          "type": "array",
          "items": { "$ref": "#/$defs/kind" },
          "uniqueItems": true
        },
        "lanes": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        },
        "roles": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/role" }
        },
        "edges": {
          "type": "array",
          "items": { "$ref": "#/$defs/edge" }
        },
        "strict_labels": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "role": {
      "type": "object",
      "required": ["id", "kind"],
      "properties": {
        "id": { "type": "string", "pattern": "^[A-Z][A-Z0-9_]*$" },
        "kind": { "$ref": "#/$defs/kind" },
        "label": { "type": "string" },
        "lane": { "type": "string" }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["from", "to"],
      "properties": {
        "from": { "type": "string", "minLength": 1 },
        "to": { "type": "string", "minLength": 1 },
        "condition": { "type": "string" }
      },
      "additionalProperties": false
    },
    "rule": {
      "type": "object",
      "required": ["name", "engine", "when"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "engine": { "type": "string", "enum": ["expr", "cel", "jq"] },
        "when": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    }
  }
}`

// StageSchemaValidator checks stage pack documents against the embedded
// JSON Schema. It is safe for concurrent use.
type StageSchemaValidator struct {
	packSchema *jsonschema.Schema
}

// NewStageSchemaValidator compiles the stage pack schema.
func NewStageSchemaValidator() (*StageSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(stagePackSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal stage pack schema: %w", err)
	}
	if err := c.AddResource(stagePackSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add stage pack schema resource: %w", err)
	}
	compiled, err := c.Compile(stagePackSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile stage pack schema: %w", err)
	}
	return &StageSchemaValidator{packSchema: compiled}, nil
}

// ValidateDocument validates raw JSON bytes.
func (v *StageSchemaValidator) ValidateDocument(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeParse, "stage pack is not valid JSON").WithCause(err)
	}
	if err := v.packSchema.Validate(doc); err != nil {
		return toGameError(err)
	}
	return nil
}

// ValidatePack validates an already-decoded pack, e.g. one loaded from HCL.
func (v *StageSchemaValidator) ValidatePack(pack *schema.StagePack) error {
	if pack == nil {
		return schema.NewError(schema.ErrCodeValidation, "stage pack is nil")
	}
	b, err := json.Marshal(pack)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize stage pack").WithCause(err)
	}
	return v.ValidateDocument(b)
}

// toGameError converts a jsonschema.ValidationError into a GameError whose
// details list every leaf violation.
func toGameError(err error) *schema.GameError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	msg := fmt.Sprintf("stage pack failed schema validation with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
