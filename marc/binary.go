package marc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// ISO 2709 structure characters.
const (
	recordTerminator  = 0x1d
	fieldTerminator   = 0x1e
	subfieldDelimiter = 0x1f

	leaderLen   = 24
	dirEntryLen = 12
)

// BinaryReader reads ISO 2709 encoded MARC records.
type BinaryReader struct {
	r   *bufio.Reader
	rec int
}

// NewBinaryReader returns a reader over ISO 2709 input.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{r: bufio.NewReader(r)}
}

// Next reads one record. The record length in the leader is always
// honored, so after a *RecordError the reader is positioned at the next
// record. A leader whose length digits are unreadable is unrecoverable
// and returns a plain error.
func (b *BinaryReader) Next() (*Record, error) {
	leader := make([]byte, leaderLen)
	if _, err := io.ReadFull(b.r, leader); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated leader: %v", ErrBadRecord, err)
	}
	b.rec++

	recLen, err := strconv.Atoi(string(leader[0:5]))
	if err != nil || recLen < leaderLen {
		return nil, fmt.Errorf("%w: record %d: bad record length %q", ErrBadRecord, b.rec, leader[0:5])
	}

	body := make([]byte, recLen-leaderLen)
	if _, err := io.ReadFull(b.r, body); err != nil {
		return nil, fmt.Errorf("%w: record %d: truncated body: %v", ErrBadRecord, b.rec, err)
	}

	rec, err := parseRecord(leader, body)
	if err != nil {
		return nil, &RecordError{Record: b.rec, Err: err}
	}
	return rec, nil
}

func parseRecord(leader, body []byte) (*Record, error) {
	baseAddr, err := strconv.Atoi(string(leader[12:17]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad base address %q", ErrBadRecord, leader[12:17])
	}
	dirLen := baseAddr - leaderLen - 1
	if dirLen < 0 || dirLen >= len(body) || dirLen%dirEntryLen != 0 {
		return nil, fmt.Errorf("%w: bad directory length %d", ErrBadRecord, dirLen)
	}
	if body[dirLen] != fieldTerminator {
		return nil, fmt.Errorf("%w: directory not terminated", ErrBadRecord)
	}
	data := body[dirLen+1:]

	rec := &Record{Leader: string(leader)}
	for off := 0; off < dirLen; off += dirEntryLen {
		entry := body[off : off+dirEntryLen]
		tag := string(entry[0:3])
		fieldLen, err1 := strconv.Atoi(string(entry[3:7]))
		start, err2 := strconv.Atoi(string(entry[7:12]))
		if err1 != nil || err2 != nil || fieldLen < 0 || start < 0 || start+fieldLen > len(data) {
			return nil, fmt.Errorf("%w: bad directory entry for tag %s", ErrBadRecord, tag)
		}
		raw := data[start : start+fieldLen]
		if len(raw) == 0 || raw[len(raw)-1] != fieldTerminator {
			return nil, fmt.Errorf("%w: field %s not terminated", ErrBadRecord, tag)
		}
		raw = raw[:len(raw)-1]

		f, err := parseField(tag, raw)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}

func parseField(tag string, raw []byte) (Field, error) {
	f := Field{Tag: tag}
	if f.IsControl() {
		f.Value = string(raw)
		return f, nil
	}
	if len(raw) < 2 {
		return f, fmt.Errorf("%w: field %s missing indicators", ErrBadRecord, tag)
	}
	f.Ind1, f.Ind2 = raw[0], raw[1]
	for _, chunk := range splitSubfields(raw[2:]) {
		if len(chunk) == 0 {
			return f, fmt.Errorf("%w: field %s has an empty subfield", ErrBadRecord, tag)
		}
		f.Subfields = append(f.Subfields, Subfield{Code: string(chunk[0:1]), Value: string(chunk[1:])})
	}
	return f, nil
}

// splitSubfields splits field data on the subfield delimiter, dropping
// anything before the first delimiter (stray bytes between indicators
// and the first subfield).
func splitSubfields(data []byte) [][]byte {
	var chunks [][]byte
	start := -1
	for i, c := range data {
		if c != subfieldDelimiter {
			continue
		}
		if start >= 0 {
			chunks = append(chunks, data[start:i])
		}
		start = i + 1
	}
	if start >= 0 {
		chunks = append(chunks, data[start:])
	}
	return chunks
}
