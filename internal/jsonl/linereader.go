package jsonl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is how many bytes the line reader requests from its
// source per read.
const DefaultChunkSize = 64 * 1024

// maxConsecutiveEmptyReads guards against sources that keep returning
// (0, nil).
const maxConsecutiveEmptyReads = 100

// LineReader splits a byte stream on '\n'. Only '\n' terminates a line; a
// lone '\r' is ordinary content.
//
// The returned slice aliases an internal buffer that is reused by the next
// call to Next.
type LineReader struct {
	src io.Reader

	raw    []byte // chunk buffer
	rawPos int    // next unread byte in raw
	rawLen int    // valid bytes in raw
	srcErr error  // sticky error from src, surfaced once raw is drained

	line []byte // current line, reset at every call

	maxLine int
	strict  bool

	bytesProcessed int64
	lineNumber     int64
}

// LineReaderOption configures a LineReader.
type LineReaderOption func(*LineReader)

// WithChunkSize sets the read size. Values <= 0 select DefaultChunkSize.
func WithChunkSize(n int) LineReaderOption {
	return func(r *LineReader) {
		if n > 0 {
			r.raw = make([]byte, n)
		}
	}
}

// WithMaxLineBytes rejects lines longer than n bytes with ErrMalformedLine.
// Zero means unlimited.
func WithMaxLineBytes(n int) LineReaderOption {
	return func(r *LineReader) { r.maxLine = n }
}

// WithStrictTerminator controls what happens to bytes after the last '\n'.
// When strict, an unterminated final line is discarded. Otherwise it is
// returned as a line if it is non-empty.
func WithStrictTerminator(strict bool) LineReaderOption {
	return func(r *LineReader) { r.strict = strict }
}

// NewLineReader returns a LineReader reading from src.
func NewLineReader(src io.Reader, opts ...LineReaderOption) *LineReader {
	r := &LineReader{src: src}
	for _, opt := range opts {
		opt(r)
	}
	if r.raw == nil {
		r.raw = make([]byte, DefaultChunkSize)
	}
	return r
}

// Next returns the next line without its terminator. It returns io.EOF when
// the stream is exhausted. Source errors are wrapped in ErrMalformedLine.
func (r *LineReader) Next() ([]byte, error) {
	r.line = r.line[:0]

	for {
		if r.rawPos >= r.rawLen {
			if err := r.fill(); err != nil {
				if !errors.Is(err, io.EOF) {
					return nil, &RowError{Kind: ErrMalformedLine, Line: r.lineNumber + 1, Err: err}
				}
				if len(r.line) == 0 || r.strict {
					r.line = r.line[:0]
					return nil, io.EOF
				}
				r.lineNumber++
				return r.line, nil
			}
		}

		chunk := r.raw[r.rawPos:r.rawLen]
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			if err := r.appendLine(chunk); err != nil {
				return nil, err
			}
			r.rawPos = r.rawLen
			continue
		}

		if err := r.appendLine(chunk[:idx]); err != nil {
			return nil, err
		}
		r.rawPos += idx + 1
		r.lineNumber++
		return r.line, nil
	}
}

// fill loads the next chunk. It returns io.EOF once the source is exhausted.
func (r *LineReader) fill() error {
	if r.srcErr != nil {
		return r.srcErr
	}

	for i := 0; i < maxConsecutiveEmptyReads; i++ {
		n, err := r.src.Read(r.raw)
		if n < 0 || n > len(r.raw) {
			return fmt.Errorf("source returned invalid count %d", n)
		}
		r.rawPos = 0
		r.rawLen = n
		r.bytesProcessed += int64(n)

		if err != nil {
			r.srcErr = err
			if n > 0 {
				return nil
			}
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return io.ErrNoProgress
}

func (r *LineReader) appendLine(p []byte) error {
	if r.maxLine > 0 && len(r.line)+len(p) > r.maxLine {
		return &RowError{
			Kind: ErrMalformedLine,
			Line: r.lineNumber + 1,
			Err:  fmt.Errorf("line exceeds %d bytes", r.maxLine),
		}
	}
	r.line = append(r.line, p...)
	return nil
}

// BytesProcessed returns the number of bytes read from the source so far.
func (r *LineReader) BytesProcessed() int64 {
	return r.bytesProcessed
}

// LineNumber returns the number of lines returned so far.
func (r *LineReader) LineNumber() int64 {
	return r.lineNumber
}
