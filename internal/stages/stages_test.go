package stages

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgame/internal/validation"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

func TestBuiltin_IsValidAndOrdered(t *testing.T) {
	c := Builtin()
	require.Equal(t, 5, c.Len())

	first, err := c.Stage(0)
	require.NoError(t, err)
	assert.Equal(t, "first-flow", first.ID)
	assert.Equal(t, []schema.BlockKind{schema.KindStart, schema.KindProcess, schema.KindEnd}, first.PaletteKinds())

	last, err := c.Stage(c.Len() - 1)
	require.NoError(t, err)
	assert.True(t, last.HasLanes())

	for i := 0; i < c.Len(); i++ {
		st, _ := c.Stage(i)
		result := validation.ValidateStage(st)
		assert.True(t, result.Valid(), "%s: %v", st.ID, result.Errors)
		assert.Empty(t, result.Warnings, st.ID)
	}
	assert.Len(t, c.Rules(), 2)
}

func TestBuiltin_DecisionStagesGradeLabels(t *testing.T) {
	c := Builtin()
	idx, ok := c.Index("decision-branching")
	require.True(t, ok)
	st, err := c.Stage(idx)
	require.NoError(t, err)
	assert.True(t, st.StrictLabels)

	// Branches swapped: "yes" leads to the block labelled Fan off.
	ws := workspace.New(st.PaletteKinds())
	place := func(kind schema.BlockKind, label string) workspace.BlockID {
		id, err := ws.PlaceBlock(kind, ws.NextFreeCell(4), workspace.Label(label))
		require.NoError(t, err)
		return id
	}
	start := place(schema.KindStart, "Start")
	measure := place(schema.KindProcess, "Measure temperature")
	hot := place(schema.KindDecision, "Temperature > 25 C?")
	on := place(schema.KindProcess, "Fan on")
	off := place(schema.KindProcess, "Fan off")
	for _, e := range []struct {
		src, dst workspace.BlockID
		cond     string
	}{
		{start, measure, ""}, {measure, hot, ""},
		{hot, off, "yes"}, {hot, on, "no"},
		{on, measure, ""}, {off, measure, ""},
	} {
		_, err := ws.Connect(e.src, e.dst, e.cond)
		require.NoError(t, err)
	}

	v := validation.New().Validate(ws, st)
	require.False(t, v.Passed)
	for _, r := range v.Reasons {
		assert.Equal(t, schema.ReasonWrongBranch, r.Code, r.Message)
	}

	loose := *st
	loose.StrictLabels = false
	assert.True(t, validation.New().Validate(ws, &loose).Passed)
}

func TestCatalog_StageOutOfRange(t *testing.T) {
	c := Builtin()
	_, err := c.Stage(-1)
	assert.True(t, schema.IsCode(err, schema.ErrCodeUnknownStage))
	_, err = c.Stage(c.Len())
	assert.True(t, schema.IsCode(err, schema.ErrCodeUnknownStage))
}

func TestCatalog_Index(t *testing.T) {
	c := Builtin()
	i, ok := c.Index("thermostat-loop")
	require.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = c.Index("nope")
	assert.False(t, ok)
}

func TestNew_RejectsInvalidPack(t *testing.T) {
	pack := BuiltinPack()
	pack.Stages[2].Edges[2].Condition = ""

	_, err := New(pack)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), "stages[2]")
}

func TestJSON_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Builtin()))

	c, err := LoadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, Builtin().Pack(), c.Pack())
}

func TestLoadJSON_SchemaViolation(t *testing.T) {
	doc := `{"stages":[{"id":"x","title":"X","task":"t","badge":"b","roles":[{"id":"S","kind":"circle"}],"edges":[]}]}`
	_, err := LoadJSON(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

const sampleHCL = `
name = "door"

stage "door" {
  title = "Door"
  task  = "Press, then open."
  badge = "Badge: Door"
  lanes = ["User", "Controller"]
  palette = [kind.start, kind.process, kind.decision, kind.end]

  role "START" {
    kind = kind.start
    lane = "User"
  }
  role "OK" {
    kind  = kind.decision
    label = "valid?"
    lane  = "Controller"
  }
  role "OPEN" {
    kind = kind.process
    lane = "Controller"
  }
  role "END" {
    kind = "end"
    lane = "User"
  }

  edge "START" "OK" {}
  edge "OK" "OPEN" { condition = "yes" }
  edge "OK" "END" { condition = "no" }
  edge "OPEN" "END" {}
}

rule "Door Opener" {
  engine = "jq"
  when   = ".attempts <= 2"
}
`

func TestParseHCL(t *testing.T) {
	c, err := ParseHCL([]byte(sampleHCL), "door.hcl")
	require.NoError(t, err)
	assert.Equal(t, "door", c.Name())
	require.Equal(t, 1, c.Len())

	st, _ := c.Stage(0)
	assert.Equal(t, []string{"User", "Controller"}, st.Lanes)
	assert.Len(t, st.Palette, 4)
	require.Len(t, st.Roles, 4)
	assert.Equal(t, schema.KindDecision, st.Roles[1].Kind)
	assert.Equal(t, schema.KindEnd, st.Roles[3].Kind)
	assert.Equal(t, schema.ExpectedEdge{From: "OK", To: "OPEN", Condition: "yes"}, st.Edges[1])
	assert.Equal(t, []schema.BadgeRule{{Name: "Door Opener", Engine: "jq", When: ".attempts <= 2"}}, c.Rules())
}

func TestParseHCL_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `stage "x" {`, schema.ErrCodeParse},
		{"unknown kind", `stage "x" {
  title = "X"
  task = "t"
  badge = "b"
  role "S" { kind = "loop" }
}`, schema.ErrCodeInvalidKind},
		{"semantic", `stage "x" {
  title = "X"
  task = "t"
  badge = "b"
  role "S" { kind = kind.start }
  edge "S" "S" {}
}`, schema.ErrCodeValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHCL([]byte(tc.src), "x.hcl")
			require.Error(t, err)
			assert.Equal(t, tc.code, schema.CodeOf(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	hclPath := filepath.Join(dir, "packs", "door.hcl")
	require.NoError(t, os.MkdirAll(filepath.Dir(hclPath), 0o755))
	require.NoError(t, os.WriteFile(hclPath, []byte(sampleHCL), 0o644))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Builtin()))
	jsonPath := filepath.Join(dir, "basics.json")
	require.NoError(t, os.WriteFile(jsonPath, buf.Bytes(), 0o644))

	c, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	c, err = LoadFile(hclPath)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	c, err = LoadFile(filepath.Dir(hclPath))
	require.NoError(t, err)
	assert.Equal(t, "door", c.Name())

	c, err = LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	yamlPath := filepath.Join(dir, "pack.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("stages: []"), 0o644))
	_, err = LoadFile(yamlPath)
	assert.True(t, schema.IsCode(err, schema.ErrCodeParse))
}
