// Package output provides sinks that persist flattened MARC rows as
// CSV, JSON Lines, or Parquet.
//
// A sink consumes the column plan once to establish headers or file
// schema, then a stream of rows in record order:
//
//	sink := output.NewCSVSink(os.Stdout)
//	if err := sink.Begin(plan); err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range rows {
//	    if err := sink.Write(row); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	if err := sink.Close(); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"errors"
	"strings"

	"github.com/bibutil/marctab/table"
)

// ErrSinkWrite is wrapped by all sink I/O failures. Output already
// flushed when the error occurs stays on disk; the caller is
// responsible for flagging the run as incomplete.
var ErrSinkWrite = errors.New("sink write failed")

// Sink persists a stream of rows conforming to one column plan.
type Sink interface {
	// Begin establishes headers or file schema from the plan. It must be
	// called exactly once, before the first Write.
	Begin(plan *table.ColumnPlan) error

	// Write persists one row. Rows must arrive in record order.
	Write(row table.Row) error

	// Close flushes and finalizes the output.
	Close() error
}

// listSeparator joins multi-valued cells in formats without a native
// list representation.
const listSeparator = "|"

// cellText renders a cell for text formats: empty string for absent,
// the scalar itself, or sequence values joined with listSeparator.
func cellText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, listSeparator)
	default:
		return ""
	}
}
