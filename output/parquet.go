package output

import (
	"fmt"
	"io"

	"github.com/bibutil/marctab/table"
	"github.com/segmentio/parquet-go"
)

// ParquetSink writes rows to a Parquet file with a schema derived from
// the column plan: optional string columns for single-valued cells,
// repeated string columns for repeatable ones, snappy compressed. Every
// batch of rows is flushed as its own row group.
//
// A non-repeatable column that nonetheless collected multiple values
// cannot become a list under its declared type, so its values are
// stored joined with the list separator instead of being dropped.
type ParquetSink struct {
	out   io.Writer
	batch int

	w       *parquet.Writer
	plan    *table.ColumnPlan
	columns []parquetColumn
	pending int
}

type parquetColumn struct {
	id         string
	index      int
	repeatable bool
}

// NewParquetSink creates a Parquet sink writing to w. batch sets the
// row group size; values < 1 fall back to 1000.
func NewParquetSink(w io.Writer, batch int) *ParquetSink {
	if batch < 1 {
		batch = 1000
	}
	return &ParquetSink{out: w, batch: batch}
}

// Begin derives the file schema from the plan and opens the writer.
func (p *ParquetSink) Begin(plan *table.ColumnPlan) error {
	p.plan = plan

	group := parquet.Group{}
	repeatable := make(map[string]bool, len(plan.Columns))
	for _, col := range plan.Columns {
		repeatable[col.ID] = col.Repeatable
		if col.Repeatable {
			group[col.ID] = parquet.Repeated(parquet.String())
		} else {
			group[col.ID] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("marc", group)

	// Group fields are ordered by name; leaf column indexes follow that
	// order in a flat schema.
	p.columns = p.columns[:0]
	for i, f := range schema.Fields() {
		p.columns = append(p.columns, parquetColumn{
			id:         f.Name(),
			index:      i,
			repeatable: repeatable[f.Name()],
		})
	}

	p.w = parquet.NewWriter(p.out, schema, parquet.Compression(&parquet.Snappy))
	return nil
}

// Write appends one row to the current row group.
func (p *ParquetSink) Write(row table.Row) error {
	values := make(parquet.Row, 0, len(p.columns))
	for _, col := range p.columns {
		values = append(values, columnValues(col, row[col.id])...)
	}
	if _, err := p.w.WriteRows([]parquet.Row{values}); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	p.pending++
	if p.pending >= p.batch {
		p.pending = 0
		if err := p.w.Flush(); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkWrite, err)
		}
	}
	return nil
}

// columnValues encodes one cell as parquet values with the repetition
// and definition levels its column type requires.
func columnValues(col parquetColumn, cell interface{}) []parquet.Value {
	switch v := cell.(type) {
	case string:
		return []parquet.Value{parquet.ValueOf(v).Level(0, 1, col.index)}
	case []string:
		if !col.repeatable {
			return []parquet.Value{parquet.ValueOf(cellText(v)).Level(0, 1, col.index)}
		}
		values := make([]parquet.Value, len(v))
		for i, s := range v {
			rep := 0
			if i > 0 {
				rep = 1
			}
			values[i] = parquet.ValueOf(s).Level(rep, 1, col.index)
		}
		return values
	default:
		return []parquet.Value{parquet.ValueOf(nil).Level(0, 0, col.index)}
	}
}

// Close flushes the final row group and writes the file footer.
func (p *ParquetSink) Close() error {
	if p.w == nil {
		return nil
	}
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}
