// Package marc reads MARC bibliographic records from ISO 2709 binary
// transmission format and from MARCXML.
//
// Both readers expose the same single-pass contract: Next returns one
// record at a time and io.EOF at end of input. A record that is
// structurally damaged surfaces as a *RecordError; the stream stays
// positioned at the following record so callers can choose to skip it.
package marc

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadRecord is the sentinel wrapped by RecordError for structurally
// damaged records.
var ErrBadRecord = errors.New("malformed marc record")

// RecordError reports a damaged record and its ordinal position in the
// input stream (1-based).
type RecordError struct {
	Record int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Subfield is one (code, value) pair inside a data field. Codes may
// repeat within a field.
type Subfield struct {
	Code  string
	Value string
}

// Field is one occurrence of a tag in a record: either a control field
// carrying a scalar Value, or a data field carrying indicators and an
// ordered subfield list.
type Field struct {
	Tag        string
	Value      string
	Ind1, Ind2 byte
	Subfields  []Subfield
}

// IsControl reports whether the field is a control field. MARC reserves
// tags 001-009 for control fields.
func (f *Field) IsControl() bool {
	return f.Tag < "010"
}

// Text returns the field's value for display: the scalar for control
// fields, subfield values joined with spaces otherwise.
func (f *Field) Text() string {
	if f.IsControl() {
		return f.Value
	}
	parts := make([]string, 0, len(f.Subfields))
	for _, sf := range f.Subfields {
		parts = append(parts, sf.Value)
	}
	return strings.Join(parts, " ")
}

// Record is one parsed MARC record with fields in encounter order.
type Record struct {
	Leader string
	Fields []Field
}

// Get returns all occurrences of a tag, in encounter order.
func (r *Record) Get(tag string) []Field {
	var out []Field
	for i := range r.Fields {
		if r.Fields[i].Tag == tag {
			out = append(out, r.Fields[i])
		}
	}
	return out
}

// Reader is the single-pass record source contract shared by the binary
// and XML readers.
type Reader interface {
	// Next returns the next record, io.EOF at end of input, or a
	// *RecordError for a damaged record.
	Next() (*Record, error)
}

// NewReaderFor picks a reader based on the input name: names ending in
// .xml get the MARCXML reader, everything else the ISO 2709 reader.
func NewReaderFor(name string, r io.Reader) Reader {
	if strings.HasSuffix(strings.ToLower(name), ".xml") {
		return NewXMLReader(r)
	}
	return NewBinaryReader(r)
}
