package jsonl

import (
	"fmt"
	"io"
)

// RowEncoder renders a whole row as one JSON object. It owns the
// column-name keys and the type-to-JSON mapping.
type RowEncoder interface {
	AppendRow(dst []byte, row any) ([]byte, error)
}

// RowEncoderFunc adapts a function to the RowEncoder interface.
type RowEncoderFunc func(dst []byte, row any) ([]byte, error)

// AppendRow implements RowEncoder.
func (f RowEncoderFunc) AppendRow(dst []byte, row any) ([]byte, error) { return f(dst, row) }

// Sink receives serialized output and is told where records end.
type Sink interface {
	Append(p []byte)
	FlushRecord() error
}

// DefaultFlushBytes is the RecordBuffer threshold used when none is given.
const DefaultFlushBytes = 64 * 1024

// RecordBuffer is a Sink that buffers records and writes them to an
// io.Writer once at least flushBytes are pending. Close writes the rest.
type RecordBuffer struct {
	w          io.Writer
	buf        []byte
	flushBytes int
	written    int64
	records    int64
}

// NewRecordBuffer returns a RecordBuffer over w. A flushBytes of 0 writes
// every record as soon as it is complete.
func NewRecordBuffer(w io.Writer, flushBytes int) *RecordBuffer {
	if flushBytes < 0 {
		flushBytes = DefaultFlushBytes
	}
	return &RecordBuffer{
		w:          w,
		buf:        make([]byte, 0, max(flushBytes, 512)),
		flushBytes: flushBytes,
	}
}

// Append implements Sink.
func (b *RecordBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// FlushRecord implements Sink.
func (b *RecordBuffer) FlushRecord() error {
	b.records++
	if len(b.buf) < b.flushBytes {
		return nil
	}
	return b.flush()
}

// Close writes any pending bytes. It does not close the underlying writer.
func (b *RecordBuffer) Close() error {
	return b.flush()
}

// Written returns the number of bytes handed to the underlying writer.
func (b *RecordBuffer) Written() int64 {
	return b.written
}

// Records returns the number of completed records.
func (b *RecordBuffer) Records() int64 {
	return b.records
}

func (b *RecordBuffer) flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	n, err := b.w.Write(b.buf)
	b.written += int64(n)
	if err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	b.buf = b.buf[:0]
	return nil
}

// Serializer holds the egress state of one copy session.
type Serializer struct {
	enc  RowEncoder
	sink Sink
	buf  []byte
	rows int64
}

// NewSerializer returns a Serializer writing rows encoded by enc into sink.
func NewSerializer(enc RowEncoder, sink Sink) *Serializer {
	return &Serializer{enc: enc, sink: sink}
}

// WriteRow appends the row's JSON object and a '\n' to the sink, then marks
// the record boundary.
func (s *Serializer) WriteRow(row any) error {
	var err error
	s.buf, err = s.enc.AppendRow(s.buf[:0], row)
	if err != nil {
		return fmt.Errorf("encode row %d: %w", s.rows+1, err)
	}
	s.buf = append(s.buf, '\n')
	s.sink.Append(s.buf)
	s.rows++
	return s.sink.FlushRecord()
}

// Rows returns the number of rows written.
func (s *Serializer) Rows() int64 {
	return s.rows
}
