package compress

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a stream codec.
type Type uint8

const (
	None Type = iota
	Gzip
	Zstd
	LZ4
)

// ErrUnknownType is returned for codec names that are not supported.
var ErrUnknownType = errors.New("unknown compression type")

var typeNames = map[Type]string{
	None: "none",
	Gzip: "gzip",
	Zstd: "zstd",
	LZ4:  "lz4",
}

// String returns the canonical codec name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("compress(%d)", uint8(t))
}

// Extension returns the file suffix for t, including the dot. None has no
// suffix.
func (t Type) Extension() string {
	switch t {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// ContentEncoding returns the HTTP Content-Encoding token for t.
func (t Type) ContentEncoding() string {
	if t == None {
		return ""
	}
	return t.String()
}

// ParseType parses a codec name. The empty string and "none" mean None;
// "gz", "zst" and "zstandard" are accepted as aliases.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "identity":
		return None, nil
	case "gzip", "gz", "x-gzip":
		return Gzip, nil
	case "zstd", "zst", "zstandard":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

// FromContentEncoding maps an HTTP Content-Encoding header to a codec.
func FromContentEncoding(header string) (Type, error) {
	return ParseType(header)
}

// FromExtension returns the codec implied by the file name's last suffix
// and the name with that suffix removed.
func FromExtension(name string) (Type, string) {
	ext := filepath.Ext(name)
	for _, t := range []Type{Gzip, Zstd, LZ4} {
		if strings.EqualFold(ext, t.Extension()) {
			return t, strings.TrimSuffix(name, ext)
		}
	}
	return None, name
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Sniff peeks at the first bytes of br and reports the codec whose frame
// magic they carry. Streams too short to hold a magic number are None. The
// peeked bytes are not consumed.
func Sniff(br *bufio.Reader) (Type, error) {
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return None, fmt.Errorf("sniff compression: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd, nil
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4, nil
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip, nil
	default:
		return None, nil
	}
}

// NewReader returns a reader that decompresses r with codec t. Closing it
// releases decoder resources but does not close r.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	case Zstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}

// NewWriter returns a writer that compresses into w with codec t. Close
// flushes the final frame but does not close w.
func NewWriter(w io.Writer, t Type) (io.WriteCloser, error) {
	switch t {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}

// OpenReader sniffs r and returns a decompressing reader for whatever codec
// it carries. Uncompressed streams pass through.
func OpenReader(r io.Reader) (io.ReadCloser, Type, error) {
	br := bufio.NewReader(r)
	t, err := Sniff(br)
	if err != nil {
		return nil, None, err
	}
	rc, err := NewReader(br, t)
	if err != nil {
		return nil, t, err
	}
	return rc, t, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
