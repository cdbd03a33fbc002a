package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanWholeSchema(t *testing.T) {
	s := testSchema(t)

	plan, err := Plan(s, nil)
	require.NoError(t, err)

	// One column per control field, one per declared subfield of each
	// data field, tags ascending, subfields in declared order.
	assert.Equal(t, []string{
		"F001", "F008",
		"F245a", "F245b", "F245c",
		"F260a", "F260b", "F260c",
		"F500a",
		"F650a", "F650x",
		"F999a",
	}, plan.IDs())
}

func TestPlanColumnCountMatchesSchema(t *testing.T) {
	s := testSchema(t)

	plan, err := Plan(s, nil)
	require.NoError(t, err)

	want := 0
	for _, f := range s.Fields() {
		if f.IsControl() {
			want++
		} else {
			want += len(f.Subfields)
		}
	}
	assert.Len(t, plan.Columns, want)
}

func TestPlanWithRules(t *testing.T) {
	s := testSchema(t)

	rules, err := ParseRules([]string{"650a", "245", "260ca"}, s)
	require.NoError(t, err)
	plan, err := Plan(s, rules)
	require.NoError(t, err)

	// Rule order wins over tag order; explicit codes keep their written
	// order; a whole-field rule on a data field explodes per subfield.
	assert.Equal(t, []string{
		"F650a",
		"F245a", "F245b", "F245c",
		"F260c", "F260a",
	}, plan.IDs())
}

func TestPlanIsDeterministic(t *testing.T) {
	s := testSchema(t)
	rules, err := ParseRules([]string{"245a", "650"}, s)
	require.NoError(t, err)

	p1, err := Plan(s, rules)
	require.NoError(t, err)
	p2, err := Plan(s, rules)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestPlanDuplicateRulesKeepBothColumns(t *testing.T) {
	s := testSchema(t)
	rules, err := ParseRules([]string{"650a", "650a"}, s)
	require.NoError(t, err)

	plan, err := Plan(s, rules)
	require.NoError(t, err)
	require.Len(t, plan.Columns, 2)
	assert.Equal(t, []string{"F650a", "F650a_2"}, plan.IDs())
	assert.Equal(t, plan.Columns[0].Tag, plan.Columns[1].Tag)
	assert.Equal(t, plan.Columns[0].Code, plan.Columns[1].Code)
}

func TestPlanRepeatability(t *testing.T) {
	s := testSchema(t)

	plan, err := Plan(s, nil)
	require.NoError(t, err)

	byID := map[string]Column{}
	for _, c := range plan.Columns {
		byID[c.ID] = c
	}

	// Non-repeatable field, non-repeatable subfield.
	assert.False(t, byID["F245a"].Repeatable)
	// Repeatable field makes its subfield columns repeatable even when
	// the subfield itself is declared non-repeatable.
	assert.True(t, byID["F650a"].Repeatable)
	// Repeatable subfield.
	assert.True(t, byID["F650x"].Repeatable)
	// Control fields inherit the field flag.
	assert.False(t, byID["F001"].Repeatable)
}

func TestPlanUnknownTag(t *testing.T) {
	s := testSchema(t)
	_, err := Plan(s, []Rule{{Tag: "777"}})
	assert.ErrorIs(t, err, ErrInvalidRule)
}
