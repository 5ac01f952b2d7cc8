package main

import (
	"database/sql"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const (
	defaultBatchRows  = 65536
	defaultBatchBytes = 20 * 1024 * 1024
)

// rowSource yields raw column values row by row. Values returned by Values
// are only valid until the next call to Next.
type rowSource interface {
	Next() bool
	Values() ([][]byte, error)
	Err() error
}

type sqlRowSource struct {
	rows   *sql.Rows
	values []sql.RawBytes
	dest   []any
	out    [][]byte
}

func newSqlRowSource(rows *sql.Rows) (*sqlRowSource, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	s := &sqlRowSource{
		rows:   rows,
		values: make([]sql.RawBytes, len(columns)),
		dest:   make([]any, len(columns)),
		out:    make([][]byte, len(columns)),
	}
	for i := range s.values {
		s.dest[i] = &s.values[i]
	}
	return s, nil
}

func (s *sqlRowSource) Next() bool { return s.rows.Next() }
func (s *sqlRowSource) Err() error { return s.rows.Err() }
func (s *sqlRowSource) Values() ([][]byte, error) {
	if err := s.rows.Scan(s.dest...); err != nil {
		return nil, err
	}
	for i, value := range s.values {
		s.out[i] = value
	}
	return s.out, nil
}

// recordBatcher turns raw rows into Arrow record batches with one binary
// column per result column. A batch is cut when it reaches maxRows rows or
// maxBytes bytes of payload.
type recordBatcher struct {
	builder  *array.RecordBuilder
	maxRows  int64
	maxBytes int64
	rows     int64
	bytes    int64
}

func newRecordBatcher(alloc memory.Allocator, columns []string, maxRows int64, maxBytes int64) *recordBatcher {
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.Binary, Nullable: true}
	}
	if maxRows <= 0 {
		maxRows = defaultBatchRows
	}
	if maxBytes <= 0 {
		maxBytes = defaultBatchBytes
	}
	return &recordBatcher{
		builder:  array.NewRecordBuilder(alloc, arrow.NewSchema(fields, nil)),
		maxRows:  maxRows,
		maxBytes: maxBytes,
	}
}

// Append adds a row and returns a finished batch when a limit is reached.
func (b *recordBatcher) Append(values [][]byte) (arrow.Record, error) {
	if len(values) != len(b.builder.Fields()) {
		return nil, fmt.Errorf("row has %v values, expected %v", len(values), len(b.builder.Fields()))
	}
	for i, value := range values {
		builder := b.builder.Field(i).(*array.BinaryBuilder)
		if value == nil {
			builder.AppendNull()
			continue
		}
		builder.Append(value)
		b.bytes += int64(len(value))
	}
	b.rows++
	if b.rows >= b.maxRows || b.bytes >= b.maxBytes {
		return b.Flush(), nil
	}
	return nil, nil
}

// Flush returns the pending batch or nil when nothing is buffered.
func (b *recordBatcher) Flush() arrow.Record {
	if b.rows == 0 {
		return nil
	}
	b.rows, b.bytes = 0, 0
	return b.builder.NewRecord()
}

func (b *recordBatcher) Release() { b.builder.Release() }

func countAndRelease(record arrow.Record) int64 {
	if record == nil {
		return 0
	}
	defer record.Release()
	return record.NumRows()
}

// drainBatches reads every row of source into record batches and returns the
// total row count. Batches are released as soon as they are counted.
func drainBatches(source rowSource, batcher *recordBatcher) (int64, error) {
	var total int64
	for source.Next() {
		values, err := source.Values()
		if err != nil {
			return total, err
		}
		record, err := batcher.Append(values)
		if err != nil {
			return total, err
		}
		total += countAndRelease(record)
	}
	if err := source.Err(); err != nil {
		return total, err
	}
	total += countAndRelease(batcher.Flush())
	return total, nil
}

// drainBatchesAsync is drainBatches with row decoding moved to a separate
// goroutine, so the next batch is filled while the previous one is consumed.
// The goroutine has exited by the time it returns.
func drainBatchesAsync(source rowSource, batcher *recordBatcher) (int64, error) {
	batches := make(chan arrow.Record, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(batches)
		for source.Next() {
			values, err := source.Values()
			if err != nil {
				errs <- err
				return
			}
			record, err := batcher.Append(values)
			if err != nil {
				errs <- err
				return
			}
			if record != nil {
				batches <- record
			}
		}
		if err := source.Err(); err != nil {
			errs <- err
			return
		}
		if record := batcher.Flush(); record != nil {
			batches <- record
		}
		errs <- nil
	}()

	var total int64
	for record := range batches {
		total += countAndRelease(record)
	}
	return total, <-errs
}
