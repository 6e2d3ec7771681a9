package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("edges[0].to", ErrCodeValidation, "references unknown role")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "edges[0].to", r.Errors[0].Path)
	assert.Equal(t, ErrCodeValidation, r.Errors[0].Code)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_AddWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("roles[LOOSE]", ErrCodeValidation, "unreachable")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_MergePrefixesPaths(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")

	r2 := &ValidationResult{}
	r2.AddError("edges[1]", ErrCodeValidation, "err2")
	r2.AddWarning("/", ErrCodeValidation, "warn2")

	r1.Merge("stages[3]", r2)

	require.Len(t, r1.Errors, 2)
	assert.Equal(t, "stages[3].edges[1]", r1.Errors[1].Path)
	require.Len(t, r1.Warnings, 1)
	assert.Equal(t, "stages[3]", r1.Warnings[0].Path)
}

func TestValidationResult_MergeNil(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/", ErrCodeValidation, "err")
	r.Merge("x", nil)
	assert.Len(t, r.Errors, 1)
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("/", ErrCodeValidation, "just a warning")
	assert.Nil(t, r.ToError())

	r.AddError("stages[0].badge", ErrCodeValidation, "badge is required")
	err := r.ToError()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
	assert.Contains(t, err.Error(), "stages[0].badge: badge is required")

	r.AddError("stages[1]", ErrCodeValidation, "second")
	err = r.ToError()
	assert.Contains(t, err.Error(), "2 errors")
}

func TestGameError(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewErrorf(ErrCodeUnknownBlock, "block %q not in workspace", "B9").
		WithSubject("B9").
		WithCause(cause)

	assert.Equal(t, `[UNKNOWN_BLOCK] B9: block "B9" not in workspace`, err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("place: %w", err)
	assert.True(t, IsCode(wrapped, ErrCodeUnknownBlock))
	assert.False(t, IsCode(wrapped, ErrCodeLocked))
	assert.Equal(t, ErrCodeUnknownBlock, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(cause))
}

func TestParseBlockKind(t *testing.T) {
	k, err := ParseBlockKind(" Decision ")
	require.NoError(t, err)
	assert.Equal(t, KindDecision, k)
	assert.True(t, k.RequiresCondition())
	assert.False(t, KindProcess.RequiresCondition())

	_, err = ParseBlockKind("start_end")
	assert.True(t, IsCode(err, ErrCodeInvalidKind))
}

func TestStage_PaletteKinds(t *testing.T) {
	s := &Stage{Roles: []Role{
		{ID: "END", Kind: KindEnd},
		{ID: "START", Kind: KindStart},
		{ID: "DO", Kind: KindProcess},
	}}
	assert.Equal(t, []BlockKind{KindStart, KindProcess, KindEnd}, s.PaletteKinds())
	assert.False(t, s.Allows(KindDecision))

	s.Palette = []BlockKind{KindDecision}
	assert.True(t, s.Allows(KindDecision))
	assert.False(t, s.Allows(KindStart))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "wait 1 second", NormalizeText("  Wait   1\tSecond "))
	assert.Equal(t, "LED_ON", NormalizeID(" led on "))
}

func TestVerdictHelpers(t *testing.T) {
	v := &Verdict{Reasons: []Reason{
		{Category: CategoryCoverage, Message: "a"},
		{Category: CategoryLane, Message: "b"},
	}}
	assert.Equal(t, []string{"a", "b"}, v.Messages())
	assert.Len(t, v.ReasonsIn(CategoryLane), 1)
	assert.Empty(t, v.ReasonsIn(CategoryBranch))
}
