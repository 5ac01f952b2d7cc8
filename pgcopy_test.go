package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

var copyFields = []pgconn.FieldDescription{
	{Name: "id", DataTypeOID: pgtype.Int4OID},
	{Name: "name", DataTypeOID: pgtype.TextOID},
	{Name: "amount", DataTypeOID: pgtype.NumericOID},
	{Name: "created", DataTypeOID: pgtype.DateOID},
}

func be32(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

func copyRows(count int) [][][]byte {
	rows := make([][][]byte, count)
	for i := range rows {
		rows[i] = [][]byte{be32(int32(i)), []byte("tiger"), nil, be32(int32(i))}
	}
	return rows
}

// copyStream encodes rows in the binary COPY format. A nil field is NULL.
func copyStream(rows [][][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(pgCopySignature)
	buf.Write(be32(0)) // flags
	buf.Write(be32(0)) // header extension length
	for _, row := range rows {
		buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(row))))
		for _, field := range row {
			if field == nil {
				buf.Write(be32(-1))
				continue
			}
			buf.Write(be32(int32(len(field))))
			buf.Write(field)
		}
	}
	buf.Write([]byte{0xff, 0xff})
	return buf.Bytes()
}

func writeChunked(t *testing.T, decoder *pgCopyDecoder, stream []byte, chunk int) {
	for len(stream) > 0 {
		n := min(chunk, len(stream))
		written, err := decoder.Write(stream[:n])
		require.Nil(t, err)
		require.Equal(t, n, written)
		stream = stream[n:]
	}
}

func TestCopyQuery(t *testing.T) {
	require.Equal(t, "COPY (select 1 LIMIT 1000) TO STDOUT (FORMAT binary)", CopyQuery("select 1 LIMIT 1000"))
}

func TestPgCopyDecoderSchema(t *testing.T) {
	decoder := newPgCopyDecoder(memory.NewGoAllocator(), copyFields, 0, 0)
	defer decoder.Release()

	require.Equal(t, arrow.PrimitiveTypes.Int32, decoder.schema.Field(0).Type)
	require.Equal(t, arrow.BinaryTypes.String, decoder.schema.Field(1).Type)
	require.Equal(t, arrow.BinaryTypes.Binary, decoder.schema.Field(2).Type)
	require.Equal(t, arrow.PrimitiveTypes.Date32, decoder.schema.Field(3).Type)
	require.Equal(t, "created", decoder.schema.Field(3).Name)
}

func TestPgCopyDecoderChunkedStream(t *testing.T) {
	for _, chunk := range []int{1, 5, 64, 1 << 20} {
		alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
		decoder := newPgCopyDecoder(alloc, copyFields, 3, 0)

		writeChunked(t, decoder, copyStream(copyRows(7)), chunk)
		total, err := decoder.Finish()
		require.Nil(t, err)
		require.Equal(t, int64(7), total)

		decoder.Release()
		alloc.AssertSize(t, 0)
	}
}

func TestPgCopyDecoderValues(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)
	decoder := newPgCopyDecoder(alloc, copyFields, 100, 0)
	defer decoder.Release()

	writeChunked(t, decoder, copyStream(copyRows(3)), 7)
	record := decoder.flush()
	require.NotNil(t, record)
	defer record.Release()

	require.Equal(t, int64(3), record.NumRows())
	require.Equal(t, int32(2), record.Column(0).(*array.Int32).Value(2))
	require.Equal(t, "tiger", record.Column(1).(*array.String).Value(1))
	require.Equal(t, 3, record.Column(2).NullN())
	require.Equal(t, arrow.Date32(postgresEpochDays+1), record.Column(3).(*array.Date32).Value(1))
}

func TestPgCopyDecoderFlushByBytes(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)
	decoder := newPgCopyDecoder(alloc, copyFields, 1000, 1)
	defer decoder.Release()

	writeChunked(t, decoder, copyStream(copyRows(4)), 1<<20)
	require.Equal(t, int64(4), decoder.total)
	require.Nil(t, decoder.flush())
}

func TestPgCopyDecoderTruncatedStream(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)
	decoder := newPgCopyDecoder(alloc, copyFields, 0, 0)
	defer decoder.Release()

	stream := copyStream(copyRows(2))
	writeChunked(t, decoder, stream[:len(stream)-5], 1<<20)
	_, err := decoder.Finish()
	require.ErrorContains(t, err, "truncated")
}

func TestPgCopyDecoderErrors(t *testing.T) {
	for name, stream := range map[string][]byte{
		"signature":   append([]byte("NOTCOPY\n\377\r\n\000"), make([]byte, 8)...),
		"field count": copyStream([][][]byte{{be32(1), []byte("tiger")}}),
		"width":       copyStream([][][]byte{{[]byte{0, 1}, []byte("tiger"), nil, be32(0)}}),
	} {
		t.Run(name, func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer alloc.AssertSize(t, 0)
			decoder := newPgCopyDecoder(alloc, copyFields, 0, 0)
			defer decoder.Release()

			_, err := decoder.Write(stream)
			require.NotNil(t, err)
		})
	}
}
