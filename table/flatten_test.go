package table

import (
	"testing"

	"github.com/bibutil/marctab/marc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *marc.Record {
	return &marc.Record{Fields: []marc.Field{
		{Tag: "001", Value: "ocm12345"},
		{Tag: "245", Subfields: []marc.Subfield{
			{Code: "a", Value: "Title One"},
			{Code: "c", Value: "Somebody."},
		}},
		{Tag: "650", Subfields: []marc.Subfield{
			{Code: "a", Value: "Topic X"},
			{Code: "x", Value: "History"},
			{Code: "x", Value: "Sources"},
		}},
		{Tag: "650", Subfields: []marc.Subfield{
			{Code: "a", Value: "Topic Y"},
		}},
	}}
}

func mustPlan(t *testing.T, tokens []string) *ColumnPlan {
	t.Helper()
	s := testSchema(t)
	rules, err := ParseRules(tokens, s)
	require.NoError(t, err)
	plan, err := Plan(s, rules)
	require.NoError(t, err)
	return plan
}

func TestFlattenScalarAndSequence(t *testing.T) {
	// The canonical scenario: a single-valued title next to a repeated
	// subject heading.
	plan := mustPlan(t, []string{"245a", "650a"})

	row := Flatten(testRecord(), plan)
	assert.Equal(t, Row{
		"F245a": "Title One",
		"F650a": []string{"Topic X", "Topic Y"},
	}, row)
}

func TestFlattenMissingFieldIsNil(t *testing.T) {
	plan := mustPlan(t, []string{"500a", "245a"})

	row := Flatten(testRecord(), plan)
	require.Contains(t, row, "F500a")
	assert.Nil(t, row["F500a"])
	assert.Equal(t, "Title One", row["F245a"])
}

func TestFlattenControlField(t *testing.T) {
	plan := mustPlan(t, []string{"001"})
	row := Flatten(testRecord(), plan)
	assert.Equal(t, Row{"F001": "ocm12345"}, row)
}

func TestFlattenConcatenatesFieldAndSubfieldRepeats(t *testing.T) {
	// 650 appears twice and $x twice within the first occurrence; all
	// occurrences land in one column in encounter order.
	plan := mustPlan(t, []string{"650x"})
	row := Flatten(testRecord(), plan)
	assert.Equal(t, []string{"History", "Sources"}, row["F650x"])
}

func TestFlattenRepeatableColumnSingleOccurrenceIsSequence(t *testing.T) {
	plan := mustPlan(t, []string{"650a"})
	rec := &marc.Record{Fields: []marc.Field{
		{Tag: "650", Subfields: []marc.Subfield{{Code: "a", Value: "Only"}}},
	}}
	row := Flatten(rec, plan)
	assert.Equal(t, []string{"Only"}, row["F650a"])
}

func TestFlattenRepeatWinsOverSchema(t *testing.T) {
	// 245 is declared non-repeatable, but a malformed record repeats
	// it anyway: every occurrence is kept, in order, rather than being
	// dropped to satisfy the schema.
	plan := mustPlan(t, []string{"245a"})
	rec := &marc.Record{Fields: []marc.Field{
		{Tag: "245", Subfields: []marc.Subfield{{Code: "a", Value: "First title"}}},
		{Tag: "245", Subfields: []marc.Subfield{{Code: "a", Value: "Second title"}}},
	}}
	row := Flatten(rec, plan)
	assert.Equal(t, []string{"First title", "Second title"}, row["F245a"])
}

func TestFlattenIsIdempotent(t *testing.T) {
	plan := mustPlan(t, []string{"245a", "650a", "650x"})
	rec := testRecord()
	assert.Equal(t, Flatten(rec, plan), Flatten(rec, plan))
}

func TestFlattenDuplicateColumnsGetSameValues(t *testing.T) {
	plan := mustPlan(t, []string{"650a", "650a"})
	row := Flatten(testRecord(), plan)
	assert.Equal(t, row["F650a"], row["F650a_2"])
}

func TestFlattenWholeSchemaRowShape(t *testing.T) {
	s := testSchema(t)
	plan, err := Plan(s, nil)
	require.NoError(t, err)

	row := Flatten(testRecord(), plan)
	// Every planned identifier is present, even for absent fields.
	require.Len(t, row, len(plan.Columns))
	for _, id := range plan.IDs() {
		assert.Contains(t, row, id)
	}
	assert.Nil(t, row["F500a"])
	assert.Nil(t, row["F008"])
}
