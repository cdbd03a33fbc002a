package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// marc.json is a partial snapshot of the Library of Congress MARC
// bibliographic catalog in Avram form, covering the commonly used
// fields. Tags absent from the snapshot fail rule validation; run the
// avram subcommand to regenerate a full catalog from loc.gov.
//
//go:embed marc.json
var defaultAvram []byte

var (
	defaultOnce   sync.Once
	defaultSchema *Schema
	defaultErr    error
)

// Default returns the schema parsed from the embedded marc.json snapshot.
// The result is parsed once and shared; callers must treat it as
// read-only.
func Default() (*Schema, error) {
	defaultOnce.Do(func() {
		defaultSchema, defaultErr = Load(bytes.NewReader(defaultAvram))
	})
	return defaultSchema, defaultErr
}

// Load parses an Avram JSON document into a Schema.
//
// The decoder walks the document token by token instead of decoding into
// maps so that the declared order of subfields survives the round trip;
// whole-field expansion depends on that order. Malformed documents and
// entries missing required attributes fail with ErrBadAvram.
func Load(r io.Reader) (*Schema, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var fields []Field
	seenFields := false
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if key != "fields" {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}
		seenFields = true
		if fields, err = decodeFields(dec); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if !seenFields {
		return nil, fmt.Errorf("%w: missing \"fields\" object", ErrBadAvram)
	}

	return New(fields)
}

// LoadFile parses the Avram document at path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAvram, err)
	}
	defer f.Close()
	return Load(f)
}

func decodeFields(dec *json.Decoder) ([]Field, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var fields []Field
	for dec.More() {
		tag, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		f, err := decodeField(dec, tag)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, expectDelim(dec, '}')
}

func decodeField(dec *json.Decoder, tag string) (Field, error) {
	f := Field{Tag: tag}
	if err := expectDelim(dec, '{'); err != nil {
		return f, err
	}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return f, err
		}
		switch key {
		case "tag":
			if err := dec.Decode(&f.Tag); err != nil {
				return f, fmt.Errorf("%w: field %s: %v", ErrBadAvram, tag, err)
			}
			if f.Tag != tag {
				return f, fmt.Errorf("%w: field key %q does not match tag attribute %q", ErrBadAvram, tag, f.Tag)
			}
		case "label":
			if err := dec.Decode(&f.Label); err != nil {
				return f, fmt.Errorf("%w: field %s: %v", ErrBadAvram, tag, err)
			}
		case "url":
			if err := dec.Decode(&f.URL); err != nil {
				return f, fmt.Errorf("%w: field %s: %v", ErrBadAvram, tag, err)
			}
		case "repeatable":
			if err := dec.Decode(&f.Repeatable); err != nil {
				return f, fmt.Errorf("%w: field %s: %v", ErrBadAvram, tag, err)
			}
		case "subfields":
			sfs, err := decodeSubfields(dec, tag)
			if err != nil {
				return f, err
			}
			f.Subfields = sfs
		default:
			if err := skipValue(dec); err != nil {
				return f, err
			}
		}
	}
	return f, expectDelim(dec, '}')
}

func decodeSubfields(dec *json.Decoder, tag string) ([]Subfield, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var sfs []Subfield
	for dec.More() {
		code, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var sf Subfield
		if err := dec.Decode(&sf); err != nil {
			return nil, fmt.Errorf("%w: field %s subfield %q: %v", ErrBadAvram, tag, code, err)
		}
		if sf.Code == "" {
			sf.Code = code
		}
		if sf.Code != code {
			return nil, fmt.Errorf("%w: field %s subfield key %q does not match code attribute %q", ErrBadAvram, tag, code, sf.Code)
		}
		sfs = append(sfs, sf)
	}
	return sfs, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadAvram, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrBadAvram, want.String(), tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadAvram, err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrBadAvram, tok)
	}
	return s, nil
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrBadAvram, err)
	}
	return nil
}

// Save writes the catalog back out as an Avram JSON document. Fields are
// written in document order and subfields keep their declared order, so
// a Load/Save round trip is stable.
func (s *Schema) Save(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString("{\n  \"fields\": {")
	for i := range s.fields {
		f := &s.fields[i]
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")
		writeJSONString(&buf, f.Tag)
		buf.WriteString(": {")
		buf.WriteString("\n      \"tag\": ")
		writeJSONString(&buf, f.Tag)
		buf.WriteString(",\n      \"label\": ")
		writeJSONString(&buf, f.Label)
		fmt.Fprintf(&buf, ",\n      \"repeatable\": %t", f.Repeatable)
		if f.URL != "" {
			buf.WriteString(",\n      \"url\": ")
			writeJSONString(&buf, f.URL)
		}
		buf.WriteString(",\n      \"subfields\": {")
		for j, sf := range f.Subfields {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString("\n        ")
			writeJSONString(&buf, sf.Code)
			buf.WriteString(": ")
			b, err := json.Marshal(sf)
			if err != nil {
				return err
			}
			buf.Write(b)
		}
		if len(f.Subfields) > 0 {
			buf.WriteString("\n      ")
		}
		buf.WriteString("}\n    }")
	}
	buf.WriteString("\n  }\n}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
