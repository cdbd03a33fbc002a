package output

import (
	"fmt"
	"io"

	"github.com/bibutil/marctab/table"
	"github.com/segmentio/encoding/json"
)

// JSONLSink writes one JSON object per row. Absent cells serialize as
// null and multi-valued cells as arrays, so every object carries the
// full planned column set.
type JSONLSink struct {
	enc *json.Encoder
}

// NewJSONLSink creates a JSON Lines sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

// Begin is a no-op for JSON Lines; the column set is carried by every
// row object.
func (j *JSONLSink) Begin(plan *table.ColumnPlan) error {
	return nil
}

// Write encodes one row as a JSON object on its own line.
func (j *JSONLSink) Write(row table.Row) error {
	if err := j.enc.Encode(row); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

// Close is a no-op; rows are written unbuffered.
func (j *JSONLSink) Close() error {
	return nil
}
