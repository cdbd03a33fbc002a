// Package schema models the Avram field catalog that drives MARC
// flattening: which tags exist, whether they repeat, and which subfield
// codes each tag declares.
//
// A Schema is loaded once from an Avram JSON document and is read-only
// afterwards, so it can be shared between concurrent conversion runs.
// The embedded marc.json snapshot of the Library of Congress MARC
// bibliographic catalog is available through Default; Crawl regenerates
// that snapshot from loc.gov.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrBadAvram is returned when an Avram document is malformed or
	// missing required attributes.
	ErrBadAvram = errors.New("invalid avram document")

	// ErrUnknownTag is returned when a tag is not defined in the schema.
	ErrUnknownTag = errors.New("unknown field tag")

	// ErrUnknownSubfield is returned when a subfield code is not declared
	// for its field.
	ErrUnknownSubfield = errors.New("unknown subfield code")
)

// Subfield describes one subfield code declared for a field.
type Subfield struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	Repeatable bool   `json:"repeatable"`
}

// Field describes one MARC field tag. Subfields preserve the order they
// were declared in the catalog document. A field with no declared
// subfields is a control field whose value is a single scalar.
type Field struct {
	Tag        string
	Label      string
	URL        string
	Repeatable bool
	Subfields  []Subfield
}

// IsControl reports whether the field carries a scalar value instead of
// subfields.
func (f *Field) IsControl() bool {
	return len(f.Subfields) == 0
}

// Subfield returns the declared subfield with the given code.
func (f *Field) Subfield(code string) (Subfield, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf, true
		}
	}
	return Subfield{}, false
}

func (f *Field) String() string {
	s := fmt.Sprintf("%s %s: %s", f.Tag, f.Label, repeatLabel(f.Repeatable))
	if len(f.Subfields) > 0 {
		codes := make([]byte, 0, len(f.Subfields))
		for _, sf := range f.Subfields {
			codes = append(codes, sf.Code[0])
		}
		s += " " + string(codes)
	}
	return s
}

func repeatLabel(repeatable bool) string {
	if repeatable {
		return "R"
	}
	return "NR"
}

// Schema is the loaded field catalog. It is immutable after load and
// safe for concurrent readers.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a Schema from a list of fields, validating each entry the
// way Load does. Field order is preserved for Save; lookups go through
// the tag index.
func New(fields []Field) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if err := validateField(&f); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Tag]; dup {
			return nil, fmt.Errorf("%w: duplicate tag %q", ErrBadAvram, f.Tag)
		}
		s.index[f.Tag] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func validateField(f *Field) error {
	if len(f.Tag) != 3 {
		return fmt.Errorf("%w: field tag %q is not 3 characters", ErrBadAvram, f.Tag)
	}
	seen := make(map[string]bool, len(f.Subfields))
	for _, sf := range f.Subfields {
		if len(sf.Code) != 1 {
			return fmt.Errorf("%w: subfield code %q in field %s is not a single character", ErrBadAvram, sf.Code, f.Tag)
		}
		if seen[sf.Code] {
			return fmt.Errorf("%w: duplicate subfield code %q in field %s", ErrBadAvram, sf.Code, f.Tag)
		}
		seen[sf.Code] = true
	}
	return nil
}

// Len returns the number of fields in the catalog.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Lookup returns the field definition for a tag.
func (s *Schema) Lookup(tag string) (*Field, bool) {
	i, ok := s.index[tag]
	if !ok {
		return nil, false
	}
	return &s.fields[i], true
}

// SubfieldOf returns the subfield definition for a (tag, code) pair.
func (s *Schema) SubfieldOf(tag, code string) (Subfield, bool) {
	f, ok := s.Lookup(tag)
	if !ok {
		return Subfield{}, false
	}
	return f.Subfield(code)
}

// Tags returns all tags in ascending lexicographic order.
func (s *Schema) Tags() []string {
	tags := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		tags = append(tags, f.Tag)
	}
	sort.Strings(tags)
	return tags
}

// Fields returns the field definitions in document order.
func (s *Schema) Fields() []Field {
	return s.fields
}
