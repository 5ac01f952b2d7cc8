package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	// days and microseconds between 1970-01-01 and 2000-01-01
	postgresEpochDays   = 10957
	postgresEpochMicros = 946684800000000

	pgCopyHeaderLen = 19
)

var pgCopySignature = []byte("PGCOPY\n\377\r\n\000")

func CopyQuery(query string) string {
	return fmt.Sprintf("COPY (%v) TO STDOUT (FORMAT binary)", query)
}

type columnAppender func(builder array.Builder, data []byte) error

func fixedWidth(size int, appendValue func(builder array.Builder, data []byte)) columnAppender {
	return func(builder array.Builder, data []byte) error {
		if len(data) != size {
			return fmt.Errorf("expected %v bytes, got %v", size, len(data))
		}
		appendValue(builder, data)
		return nil
	}
}

// pgCopyColumn maps a PostgreSQL type to an Arrow type. Types without a
// direct Arrow counterpart (numeric, uuid, json, ...) keep their binary wire
// representation.
func pgCopyColumn(oid uint32) (arrow.DataType, columnAppender) {
	switch oid {
	case pgtype.BoolOID:
		return arrow.FixedWidthTypes.Boolean, fixedWidth(1, func(b array.Builder, data []byte) {
			b.(*array.BooleanBuilder).Append(data[0] != 0)
		})
	case pgtype.Int2OID:
		return arrow.PrimitiveTypes.Int16, fixedWidth(2, func(b array.Builder, data []byte) {
			b.(*array.Int16Builder).Append(int16(binary.BigEndian.Uint16(data)))
		})
	case pgtype.Int4OID:
		return arrow.PrimitiveTypes.Int32, fixedWidth(4, func(b array.Builder, data []byte) {
			b.(*array.Int32Builder).Append(int32(binary.BigEndian.Uint32(data)))
		})
	case pgtype.Int8OID:
		return arrow.PrimitiveTypes.Int64, fixedWidth(8, func(b array.Builder, data []byte) {
			b.(*array.Int64Builder).Append(int64(binary.BigEndian.Uint64(data)))
		})
	case pgtype.Float4OID:
		return arrow.PrimitiveTypes.Float32, fixedWidth(4, func(b array.Builder, data []byte) {
			b.(*array.Float32Builder).Append(math.Float32frombits(binary.BigEndian.Uint32(data)))
		})
	case pgtype.Float8OID:
		return arrow.PrimitiveTypes.Float64, fixedWidth(8, func(b array.Builder, data []byte) {
			b.(*array.Float64Builder).Append(math.Float64frombits(binary.BigEndian.Uint64(data)))
		})
	case pgtype.DateOID:
		return arrow.PrimitiveTypes.Date32, fixedWidth(4, func(b array.Builder, data []byte) {
			days := int32(binary.BigEndian.Uint32(data))
			b.(*array.Date32Builder).Append(arrow.Date32(days + postgresEpochDays))
		})
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		dataType := arrow.DataType(&arrow.TimestampType{Unit: arrow.Microsecond})
		if oid == pgtype.TimestamptzOID {
			dataType = arrow.FixedWidthTypes.Timestamp_us
		}
		return dataType, fixedWidth(8, func(b array.Builder, data []byte) {
			micros := int64(binary.BigEndian.Uint64(data))
			b.(*array.TimestampBuilder).Append(arrow.Timestamp(micros + postgresEpochMicros))
		})
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID, pgtype.QCharOID:
		return arrow.BinaryTypes.String, func(b array.Builder, data []byte) error {
			b.(*array.StringBuilder).BinaryBuilder.Append(data)
			return nil
		}
	default:
		return arrow.BinaryTypes.Binary, func(b array.Builder, data []byte) error {
			b.(*array.BinaryBuilder).Append(data)
			return nil
		}
	}
}

// pgCopyDecoder turns a binary COPY stream into typed Arrow record batches.
// pgconn writes one CopyData message at a time, so a tuple may span writes.
// Finished batches are counted and released right away.
type pgCopyDecoder struct {
	schema   *arrow.Schema
	builder  *array.RecordBuilder
	columns  []columnAppender
	maxRows  int64
	maxBytes int64
	rows     int64
	bytes    int64
	total    int64
	pending  []byte
	header   bool
	trailer  bool
}

func newPgCopyDecoder(alloc memory.Allocator, fields []pgconn.FieldDescription, maxRows int64, maxBytes int64) *pgCopyDecoder {
	arrowFields := make([]arrow.Field, len(fields))
	columns := make([]columnAppender, len(fields))
	for i, field := range fields {
		dataType, appendValue := pgCopyColumn(field.DataTypeOID)
		arrowFields[i] = arrow.Field{Name: field.Name, Type: dataType, Nullable: true}
		columns[i] = appendValue
	}
	if maxRows <= 0 {
		maxRows = defaultBatchRows
	}
	if maxBytes <= 0 {
		maxBytes = defaultBatchBytes
	}
	schema := arrow.NewSchema(arrowFields, nil)
	return &pgCopyDecoder{
		schema:   schema,
		builder:  array.NewRecordBuilder(alloc, schema),
		columns:  columns,
		maxRows:  maxRows,
		maxBytes: maxBytes,
	}
}

func (d *pgCopyDecoder) Write(p []byte) (int, error) {
	d.pending = append(d.pending, p...)
	consumed, err := d.decode(d.pending)
	left := copy(d.pending, d.pending[consumed:])
	d.pending = d.pending[:left]
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *pgCopyDecoder) decode(buf []byte) (int, error) {
	offset := 0
	if !d.header {
		if len(buf) < pgCopyHeaderLen {
			return 0, nil
		}
		if !bytes.Equal(buf[:len(pgCopySignature)], pgCopySignature) {
			return 0, errors.New("invalid binary COPY signature")
		}
		extension := int(binary.BigEndian.Uint32(buf[15:pgCopyHeaderLen]))
		if len(buf) < pgCopyHeaderLen+extension {
			return 0, nil
		}
		offset = pgCopyHeaderLen + extension
		d.header = true
	}
	for !d.trailer {
		n, err := d.decodeTuple(buf[offset:])
		if err != nil || n == 0 {
			return offset, err
		}
		offset += n
	}
	return offset, nil
}

// decodeTuple consumes one complete tuple and returns its length, or 0 when
// buf does not hold a whole tuple yet.
func (d *pgCopyDecoder) decodeTuple(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, nil
	}
	count := int16(binary.BigEndian.Uint16(buf))
	if count == -1 {
		d.trailer = true
		return 2, nil
	}
	if int(count) != len(d.columns) {
		return 0, fmt.Errorf("tuple has %v fields, expected %v", count, len(d.columns))
	}

	end := 2
	for range d.columns {
		if len(buf) < end+4 {
			return 0, nil
		}
		size := int32(binary.BigEndian.Uint32(buf[end:]))
		end += 4
		if size > 0 {
			end += int(size)
		}
		if len(buf) < end {
			return 0, nil
		}
	}

	pos := 2
	for i, appendValue := range d.columns {
		size := int32(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		builder := d.builder.Field(i)
		if size == -1 {
			builder.AppendNull()
			continue
		}
		if size < 0 {
			return 0, fmt.Errorf("column %v: invalid field length %v", d.schema.Field(i).Name, size)
		}
		if err := appendValue(builder, buf[pos:pos+int(size)]); err != nil {
			return 0, fmt.Errorf("column %v: %w", d.schema.Field(i).Name, err)
		}
		pos += int(size)
	}

	d.rows++
	d.bytes += int64(end)
	if d.rows >= d.maxRows || d.bytes >= d.maxBytes {
		d.total += countAndRelease(d.flush())
	}
	return end, nil
}

func (d *pgCopyDecoder) flush() arrow.Record {
	if d.rows == 0 {
		return nil
	}
	d.rows, d.bytes = 0, 0
	return d.builder.NewRecord()
}

// Finish drains the last partial batch and returns the number of rows decoded.
func (d *pgCopyDecoder) Finish() (int64, error) {
	if !d.trailer || len(d.pending) > 0 {
		return d.total, errors.New("binary COPY stream is truncated")
	}
	d.total += countAndRelease(d.flush())
	return d.total, nil
}

func (d *pgCopyDecoder) Release() { d.builder.Release() }
