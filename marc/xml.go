package marc

import (
	"encoding/xml"
	"fmt"
	"io"
)

// XMLReader reads MARCXML input one <record> element at a time, so
// arbitrarily large collections stream without loading into memory.
type XMLReader struct {
	dec *xml.Decoder
	rec int
}

// NewXMLReader returns a reader over MARCXML input. Both bare <record>
// streams and <collection>-wrapped documents are accepted.
func NewXMLReader(r io.Reader) *XMLReader {
	return &XMLReader{dec: xml.NewDecoder(r)}
}

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type xmlDataField struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlRecord struct {
	Leader        string            `xml:"leader"`
	ControlFields []xmlControlField `xml:"controlfield"`
	DataFields    []xmlDataField    `xml:"datafield"`
}

// Next returns the next <record> element, or io.EOF when the document
// is exhausted.
func (x *XMLReader) Next() (*Record, error) {
	for {
		tok, err := x.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "record" {
			continue
		}
		x.rec++

		var xr xmlRecord
		if err := x.dec.DecodeElement(&xr, &se); err != nil {
			return nil, &RecordError{Record: x.rec, Err: fmt.Errorf("%w: %v", ErrBadRecord, err)}
		}
		return xr.toRecord(x.rec)
	}
}

func (xr *xmlRecord) toRecord(n int) (*Record, error) {
	rec := &Record{Leader: xr.Leader}
	for _, cf := range xr.ControlFields {
		if len(cf.Tag) != 3 {
			return nil, &RecordError{Record: n, Err: fmt.Errorf("%w: bad controlfield tag %q", ErrBadRecord, cf.Tag)}
		}
		rec.Fields = append(rec.Fields, Field{Tag: cf.Tag, Value: cf.Value})
	}
	for _, df := range xr.DataFields {
		if len(df.Tag) != 3 {
			return nil, &RecordError{Record: n, Err: fmt.Errorf("%w: bad datafield tag %q", ErrBadRecord, df.Tag)}
		}
		f := Field{Tag: df.Tag, Ind1: indicator(df.Ind1), Ind2: indicator(df.Ind2)}
		for _, sf := range df.Subfields {
			if len(sf.Code) != 1 {
				return nil, &RecordError{Record: n, Err: fmt.Errorf("%w: bad subfield code %q in field %s", ErrBadRecord, sf.Code, df.Tag)}
			}
			f.Subfields = append(f.Subfields, Subfield{Code: sf.Code, Value: sf.Value})
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}

func indicator(s string) byte {
	if s == "" {
		return ' '
	}
	return s[0]
}
