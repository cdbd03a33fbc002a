package table

import (
	"fmt"

	"github.com/bibutil/marctab/schema"
)

// Column describes one output column of a conversion run.
type Column struct {
	// ID is the column identifier, "F" + tag + optional subfield code.
	// When the same (tag, code) pair is planned more than once, later
	// columns get an occurrence suffix ("F650a", "F650a_2") so that
	// identifiers stay unique within one plan.
	ID string

	// Tag is the source field tag.
	Tag string

	// Code is the source subfield code; empty for a whole control field
	// column.
	Code string

	// Repeatable marks columns that can legitimately hold more than one
	// value per record. A subfield column is repeatable when either its
	// field or the subfield itself repeats, since repeated fields feed
	// the same column.
	Repeatable bool
}

// ColumnPlan is the ordered, fixed column list for one conversion run.
// Every row produced during the run carries exactly these identifiers.
type ColumnPlan struct {
	Columns []Column
}

// IDs returns the column identifiers in plan order.
func (p *ColumnPlan) IDs() []string {
	ids := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		ids[i] = c.ID
	}
	return ids
}

// Plan builds the column plan for a schema and an optional rule list.
//
// With no rules every tag in the schema expands, in ascending tag order.
// With rules, each rule expands in the order given. In both cases a
// control field yields a single column and a data field yields one
// column per subfield: all declared subfields in declared order for a
// whole-field rule, or the named codes in the order they were written.
// The result is a pure function of its inputs.
func Plan(s *schema.Schema, rules []Rule) (*ColumnPlan, error) {
	p := &ColumnPlan{}
	used := make(map[string]int)

	if len(rules) == 0 {
		for _, tag := range s.Tags() {
			field, _ := s.Lookup(tag)
			expandField(p, used, field)
		}
		return p, nil
	}

	for _, rule := range rules {
		field, ok := s.Lookup(rule.Tag)
		if !ok {
			return nil, fmt.Errorf("%w: tag %s is not defined in the schema", ErrInvalidRule, rule.Tag)
		}
		if len(rule.Codes) == 0 {
			expandField(p, used, field)
			continue
		}
		for _, code := range rule.Codes {
			sf, ok := field.Subfield(code)
			if !ok {
				return nil, fmt.Errorf("%w: subfield %s is not declared for field %s", ErrInvalidRule, code, rule.Tag)
			}
			addColumn(p, used, Column{
				Tag:        field.Tag,
				Code:       code,
				Repeatable: field.Repeatable || sf.Repeatable,
			})
		}
	}
	return p, nil
}

func expandField(p *ColumnPlan, used map[string]int, field *schema.Field) {
	if field.IsControl() {
		addColumn(p, used, Column{Tag: field.Tag, Repeatable: field.Repeatable})
		return
	}
	for _, sf := range field.Subfields {
		addColumn(p, used, Column{
			Tag:        field.Tag,
			Code:       sf.Code,
			Repeatable: field.Repeatable || sf.Repeatable,
		})
	}
}

func addColumn(p *ColumnPlan, used map[string]int, col Column) {
	base := "F" + col.Tag + col.Code
	used[base]++
	col.ID = base
	if n := used[base]; n > 1 {
		col.ID = fmt.Sprintf("%s_%d", base, n)
	}
	p.Columns = append(p.Columns, col)
}
