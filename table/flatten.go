package table

import "github.com/bibutil/marctab/marc"

// Row is one flattened record. Every planned column identifier is
// present as a key; a cell is nil when the source field is absent, a
// string for a single value on a non-repeatable column, and a []string
// for repeatable columns or for non-repeatable columns that repeat
// anyway in the input.
type Row map[string]interface{}

// Flatten maps one record onto the column plan.
//
// For each column, all matching occurrences are collected in record
// encounter order: a repeated field contributes once per occurrence,
// and a repeated subfield contributes once per occurrence within each
// field, concatenated. When a column declared non-repeatable still
// collects more than one value the full sequence is kept; observed data
// wins over the schema's repeatability claim, nothing is dropped.
//
// Flatten is a pure function of (record, plan) and is safe to call
// concurrently for different records against a shared plan.
func Flatten(rec *marc.Record, plan *ColumnPlan) Row {
	row := make(Row, len(plan.Columns))
	for _, col := range plan.Columns {
		row[col.ID] = cell(rec, &col)
	}
	return row
}

func cell(rec *marc.Record, col *Column) interface{} {
	var vals []string
	for i := range rec.Fields {
		f := &rec.Fields[i]
		if f.Tag != col.Tag {
			continue
		}
		if col.Code == "" {
			vals = append(vals, f.Text())
			continue
		}
		for _, sf := range f.Subfields {
			if sf.Code == col.Code {
				vals = append(vals, sf.Value)
			}
		}
	}
	switch {
	case len(vals) == 0:
		return nil
	case len(vals) == 1 && !col.Repeatable:
		return vals[0]
	default:
		return vals
	}
}
