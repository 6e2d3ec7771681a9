// Package expressions evaluates bonus badge rules. Three engines are
// available: expr, CEL and jq.
package expressions

import (
	"context"
	"fmt"

	"github.com/rendis/flowgame/pkg/schema"
)

// Engine evaluates one expression against a fact map.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Registry holds one instance of each engine keyed by name.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates the expr, cel and jq engines.
func NewRegistry() (*Registry, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	r := &Registry{engines: make(map[string]Engine, 3)}
	for _, e := range []Engine{NewExprEngine(), celEngine, NewGoJQEngine()} {
		r.engines[e.Name()] = e
	}
	return r, nil
}

// Get returns the engine with the given name.
func (r *Registry) Get(name string) (Engine, error) {
	e, ok := r.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"unknown expression engine %q: must be one of expr, cel, jq", name)
	}
	return e, nil
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	return schema.SortedKeys(r.engines)
}

// truthy interprets a rule result. Only booleans are accepted; jq's null and
// empty output count as false.
func truthy(expression string, v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case nil:
		return false, nil
	default:
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"rule %q must evaluate to a boolean, got %s", expression, fmt.Sprintf("%T", v))
	}
}
