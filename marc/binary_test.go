package marc

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeISO builds a well-formed ISO 2709 record from fields, computing
// the leader, directory, and terminators.
func encodeISO(t *testing.T, fields []Field) []byte {
	t.Helper()

	var dir, data bytes.Buffer
	for _, f := range fields {
		var fd bytes.Buffer
		if f.IsControl() {
			fd.WriteString(f.Value)
		} else {
			ind1, ind2 := f.Ind1, f.Ind2
			if ind1 == 0 {
				ind1 = ' '
			}
			if ind2 == 0 {
				ind2 = ' '
			}
			fd.WriteByte(ind1)
			fd.WriteByte(ind2)
			for _, sf := range f.Subfields {
				fd.WriteByte(subfieldDelimiter)
				fd.WriteString(sf.Code)
				fd.WriteString(sf.Value)
			}
		}
		fd.WriteByte(fieldTerminator)
		fmt.Fprintf(&dir, "%s%04d%05d", f.Tag, fd.Len(), data.Len())
		data.Write(fd.Bytes())
	}

	baseAddr := leaderLen + dir.Len() + 1
	recLen := baseAddr + data.Len() + 1

	var rec bytes.Buffer
	fmt.Fprintf(&rec, "%05d", recLen)
	rec.WriteString("nam a22")
	fmt.Fprintf(&rec, "%05d", baseAddr)
	rec.WriteString(" a 4500")
	require.Equal(t, leaderLen, rec.Len())

	rec.Write(dir.Bytes())
	rec.WriteByte(fieldTerminator)
	rec.Write(data.Bytes())
	rec.WriteByte(recordTerminator)
	return rec.Bytes()
}

func testFields() []Field {
	return []Field{
		{Tag: "001", Value: "ocm12345"},
		{Tag: "008", Value: "000110s2000    ohu           eng  "},
		{Tag: "245", Ind1: '1', Ind2: '0', Subfields: []Subfield{
			{Code: "a", Value: "Title One /"},
			{Code: "c", Value: "Somebody."},
		}},
		{Tag: "650", Ind1: ' ', Ind2: '0', Subfields: []Subfield{
			{Code: "a", Value: "Topic X"},
			{Code: "x", Value: "History"},
			{Code: "x", Value: "Sources"},
		}},
		{Tag: "650", Ind1: ' ', Ind2: '0', Subfields: []Subfield{
			{Code: "a", Value: "Topic Y"},
		}},
	}
}

func TestBinaryReaderNext(t *testing.T) {
	raw := encodeISO(t, testFields())
	r := NewBinaryReader(bytes.NewReader(raw))

	rec, err := r.Next()
	require.NoError(t, err)
	require.Len(t, rec.Fields, 5)

	assert.Equal(t, "001", rec.Fields[0].Tag)
	assert.True(t, rec.Fields[0].IsControl())
	assert.Equal(t, "ocm12345", rec.Fields[0].Value)

	f245 := rec.Fields[2]
	assert.Equal(t, byte('1'), f245.Ind1)
	assert.Equal(t, byte('0'), f245.Ind2)
	require.Len(t, f245.Subfields, 2)
	assert.Equal(t, Subfield{Code: "a", Value: "Title One /"}, f245.Subfields[0])

	f650 := rec.Fields[3]
	require.Len(t, f650.Subfields, 3)
	assert.Equal(t, "Sources", f650.Subfields[2].Value)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestBinaryReaderMultipleRecords(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeISO(t, []Field{{Tag: "001", Value: "first"}}))
	buf.Write(encodeISO(t, []Field{{Tag: "001", Value: "second"}}))

	r := NewBinaryReader(&buf)
	rec1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", rec1.Fields[0].Value)

	rec2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", rec2.Fields[0].Value)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestBinaryReaderSkipsDamagedRecord(t *testing.T) {
	// Corrupt the first record's directory but keep its length intact,
	// then append a healthy record: the reader must resync.
	bad := encodeISO(t, []Field{{Tag: "001", Value: "broken"}})
	copy(bad[leaderLen+3:leaderLen+7], "XXXX")
	var buf bytes.Buffer
	buf.Write(bad)
	buf.Write(encodeISO(t, []Field{{Tag: "001", Value: "healthy"}}))

	r := NewBinaryReader(&buf)

	_, err := r.Next()
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Record)
	assert.ErrorIs(t, err, ErrBadRecord)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "healthy", rec.Fields[0].Value)
}

func TestBinaryReaderBaseAddressPastBody(t *testing.T) {
	// A base address of recLen+1 puts the directory terminator one byte
	// past the end of the record body.
	bad := encodeISO(t, []Field{{Tag: "001", Value: "broken"}})
	recLen := len(bad)
	copy(bad[12:17], fmt.Sprintf("%05d", recLen+1))

	r := NewBinaryReader(bytes.NewReader(bad))
	_, err := r.Next()
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.ErrorIs(t, err, ErrBadRecord)
}

func TestBinaryReaderNegativeDirectoryOffsets(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(rec []byte)
	}{
		{"negative start", func(rec []byte) {
			copy(rec[leaderLen+7:leaderLen+12], "-0001")
		}},
		{"negative length", func(rec []byte) {
			copy(rec[leaderLen+3:leaderLen+7], "-001")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := encodeISO(t, []Field{{Tag: "001", Value: "broken"}})
			tt.corrupt(bad)
			var buf bytes.Buffer
			buf.Write(bad)
			buf.Write(encodeISO(t, []Field{{Tag: "001", Value: "healthy"}}))

			r := NewBinaryReader(&buf)
			_, err := r.Next()
			var recErr *RecordError
			require.ErrorAs(t, err, &recErr)
			assert.ErrorIs(t, err, ErrBadRecord)

			rec, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, "healthy", rec.Fields[0].Value)
		})
	}
}

func TestBinaryReaderTruncatedLeader(t *testing.T) {
	r := NewBinaryReader(bytes.NewReader([]byte("0012")))
	_, err := r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRecord)
}

func TestRecordGet(t *testing.T) {
	raw := encodeISO(t, testFields())
	rec, err := NewBinaryReader(bytes.NewReader(raw)).Next()
	require.NoError(t, err)

	occ := rec.Get("650")
	require.Len(t, occ, 2)
	assert.Equal(t, "Topic X", occ[0].Subfields[0].Value)
	assert.Equal(t, "Topic Y", occ[1].Subfields[0].Value)
	assert.Empty(t, rec.Get("500"))
}

func TestFieldText(t *testing.T) {
	f := Field{Tag: "245", Subfields: []Subfield{
		{Code: "a", Value: "Title One /"},
		{Code: "c", Value: "Somebody."},
	}}
	assert.Equal(t, "Title One / Somebody.", f.Text())

	cf := Field{Tag: "001", Value: "ocm12345"}
	assert.Equal(t, "ocm12345", cf.Text())
}
