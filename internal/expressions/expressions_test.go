package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgame/pkg/schema"
)

func sampleFacts() Facts {
	return Facts{
		Stage:    StageFacts{Index: 4, ID: "swimlanes", Title: "Swimlanes", Badge: "Badge: Swimlane Starter"},
		Attempts: 1,
		Progress: ProgressFacts{Completed: true, Passed: 5, Total: 5, Badges: []string{"Badge: Flow Starter"}},
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"cel", "expr", "jq"}, r.Names())

	for _, name := range r.Names() {
		e, err := r.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}

	_, err = r.Get("lua")
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))
}

func TestEngines_SameRuleEverywhere(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	data := sampleFacts().Map()

	tests := []struct {
		engine string
		expr   string
		want   any
	}{
		{"expr", "attempts == 1", true},
		{"expr", "stage.index + 1", 5},
		{"expr", `"Badge: Flow Starter" in progress.badges`, true},
		{"cel", "progress.completed", true},
		{"cel", "attempts == 1 && stage.id == 'swimlanes'", true},
		{"cel", "size(progress.badges)", int64(1)},
		{"jq", ".attempts == 1", true},
		{"jq", ".progress.passed / .progress.total", 1.0},
		{"jq", ".progress.badges | length", 1},
		{"jq", ".stage.title", "Swimlanes"},
	}
	for _, tc := range tests {
		t.Run(tc.engine+"/"+tc.expr, func(t *testing.T) {
			e, err := r.Get(tc.engine)
			require.NoError(t, err)
			out, err := e.Evaluate(context.Background(), tc.expr, data)
			require.NoError(t, err)
			assert.EqualValues(t, tc.want, out)
		})
	}
}

func TestEngines_Errors(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	tests := []struct {
		engine string
		expr   string
	}{
		{"expr", ""},
		{"expr", "attempts =="},
		{"expr", "attemps == 1"},
		{"cel", ""},
		{"cel", "attempts +"},
		{"cel", "nope == 1"},
		{"jq", ""},
		{"jq", ".["},
		{"jq", `error("boom")`},
	}
	for _, tc := range tests {
		t.Run(tc.engine+"/"+tc.expr, func(t *testing.T) {
			e, _ := r.Get(tc.engine)
			_, err := e.Evaluate(context.Background(), tc.expr, sampleFacts().Map())
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeExpression), err.Error())
		})
	}
}

func TestCEL_MissingFactsDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), "attempts == 0 && size(progress) == 0", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestGoJQ_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()
	out, err := e.Evaluate(context.Background(), ".progress.badges[], .stage.id", sampleFacts().Map())
	require.NoError(t, err)
	assert.Equal(t, []any{"Badge: Flow Starter", "swimlanes"}, out)

	out, err = e.Evaluate(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_NoEnvironment(t *testing.T) {
	t.Setenv("FLOWGAME_SECRET", "x")
	e := NewGoJQEngine()
	out, err := e.Evaluate(context.Background(), "$ENV.FLOWGAME_SECRET", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_NormalisesTypedValues(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{
		"attempts": map[string]int{"first-flow": 2},
		"unlocked": []int{0, 1},
		"badges":   []string{"a"},
	}
	out, err := e.Evaluate(context.Background(), `[.attempts["first-flow"], (.unlocked | add), .badges[0]]`, data)
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 1.0, "a"}, out)
}

func TestRuleEvaluator_Matches(t *testing.T) {
	re, err := NewRuleEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	facts := sampleFacts()
	ok, err := re.Matches(ctx, schema.BadgeRule{Name: "First Try: {stage}", Engine: "expr", When: "attempts == 1"}, facts)
	require.NoError(t, err)
	assert.True(t, ok)

	facts.Attempts = 3
	ok, err = re.Matches(ctx, schema.BadgeRule{Engine: "expr", When: "attempts == 1"}, facts)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = re.Matches(ctx, schema.BadgeRule{Engine: "jq", When: "select(.attempts > 5)"}, facts)
	require.NoError(t, err)
	assert.False(t, ok, "no jq output counts as false")

	_, err = re.Matches(ctx, schema.BadgeRule{Engine: "expr", When: "stage.title"}, facts)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))

	_, err = re.Matches(ctx, schema.BadgeRule{Engine: "lua", When: "true"}, facts)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))
}

func TestBadgeName(t *testing.T) {
	rule := schema.BadgeRule{Name: "First Try: {stage}"}
	assert.Equal(t, "First Try: Swimlanes", BadgeName(rule, sampleFacts()))
	assert.Equal(t, "Flow Architect", BadgeName(schema.BadgeRule{Name: "Flow Architect"}, sampleFacts()))
}

func TestEngines_Concurrent(t *testing.T) {
	re, err := NewRuleEvaluator()
	require.NoError(t, err)
	rules := []schema.BadgeRule{
		{Engine: "expr", When: "attempts == 1"},
		{Engine: "cel", When: "progress.completed"},
		{Engine: "jq", When: ".progress.completed"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(rule schema.BadgeRule) {
			defer wg.Done()
			ok, err := re.Matches(context.Background(), rule, sampleFacts())
			assert.NoError(t, err)
			assert.True(t, ok)
		}(rules[i%len(rules)])
	}
	wg.Wait()
}
