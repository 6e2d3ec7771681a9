package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/flowgame/pkg/schema"
)

// badgeEnv is the fact shape every expr badge rule is type checked against.
var badgeEnv = Facts{}.Map()

// ExprEngine evaluates badge rules written in expr-lang/expr, such as
// `attempts == 1` or `"Badge: Flow Starter" in progress.badges`. Rules are
// compiled once against the badge fact shape, so a misspelt fact name is a
// compile error rather than a silent false.
type ExprEngine struct {
	programs sync.Map // rule text → *vm.Program
}

// NewExprEngine creates an expr badge-rule engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// Name returns the engine identifier used in BadgeRule.Engine.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs rule against facts, normally Facts.Map().
func (e *ExprEngine) Evaluate(_ context.Context, rule string, facts map[string]any) (any, error) {
	if rule == "" {
		return nil, schema.NewError(schema.ErrCodeExpression, "badge rule has no expr condition")
	}
	prg, err := e.program(rule)
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = badgeEnv
	}
	out, err := vm.Run(prg, facts)
	if err != nil {
		return nil, ruleError(rule, "badge rule failed", err)
	}
	return out, nil
}

func (e *ExprEngine) program(rule string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(rule); ok {
		return cached.(*vm.Program), nil
	}
	prg, err := expr.Compile(rule, expr.Env(badgeEnv))
	if err != nil {
		return nil, ruleError(rule, "badge rule does not compile", err)
	}
	actual, _ := e.programs.LoadOrStore(rule, prg)
	return actual.(*vm.Program), nil
}

func ruleError(rule, msg string, err error) *schema.GameError {
	return schema.NewErrorf(schema.ErrCodeExpression, "%s: expr %q: %s", msg, rule, err.Error()).
		WithCause(err).
		WithSubject(rule)
}

var _ Engine = (*ExprEngine)(nil)
