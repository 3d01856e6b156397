package core

// streaming.go provides reader wrappers for import bodies.
//
//   - BOMSkippingReader: drops a leading UTF-8 BOM, which editors on
//     Windows add and which would otherwise make line 1 invalid JSON
//   - StreamingCountingReader: counts the bytes received before
//     decompression, for logging and session summaries
//
// Invalid UTF-8 is not repaired here: the server rejects it and the copy
// fails instead of storing altered text.

import (
	"bytes"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	head    []byte // bytes read while checking that were not a BOM
	headErr error
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var buf [3]byte
		n, err := io.ReadFull(r.reader, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if n < len(utf8BOM) || !bytes.Equal(buf[:], utf8BOM) {
			r.head = append([]byte(nil), buf[:n]...)
		}
		r.headErr = err
	}

	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		if len(r.head) == 0 && r.headErr != nil {
			return n, r.headErr
		}
		return n, nil
	}
	if r.headErr != nil {
		return 0, r.headErr
	}

	return r.reader.Read(p)
}

// StreamingCountingReader wraps an io.Reader to track bytes read.
type StreamingCountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}
