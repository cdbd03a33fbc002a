package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/bibutil/marctab/table"
)

// CSVSink writes rows as CSV with a header row of column identifiers in
// plan order. Absent cells are empty; multi-valued cells are joined
// with the list separator.
type CSVSink struct {
	w    *csv.Writer
	plan *table.ColumnPlan
}

// NewCSVSink creates a CSV sink writing to w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Begin writes the header row.
func (c *CSVSink) Begin(plan *table.ColumnPlan) error {
	c.plan = plan
	if err := c.w.Write(plan.IDs()); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

// Write appends one row in plan column order.
func (c *CSVSink) Write(row table.Row) error {
	record := make([]string, len(c.plan.Columns))
	for i, col := range c.plan.Columns {
		record[i] = cellText(row[col.ID])
	}
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

// Close flushes buffered rows.
func (c *CSVSink) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}
