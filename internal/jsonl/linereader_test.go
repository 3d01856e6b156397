package jsonl

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func readAllLines(t *testing.T, r *LineReader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
}

func TestLineReader_Split(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		strict bool
		want   []string
	}{
		{name: "empty stream", input: "", want: nil},
		{name: "single terminated line", input: "{\"a\":1}\n", want: []string{`{"a":1}`}},
		{name: "trailing line without terminator", input: "a\nb\nc", want: []string{"a", "b", "c"}},
		{name: "empty remainder yields nothing", input: "a\nb\n", want: []string{"a", "b"}},
		{name: "strict discards unterminated line", input: "a\nb", strict: true, want: []string{"a"}},
		{name: "blank lines are lines", input: "a\n\nb\n", want: []string{"a", "", "b"}},
		{name: "carriage return is content", input: "a\r\nb\rc\n", want: []string{"a\r", "b\rc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLineReader(strings.NewReader(tt.input), WithStrictTerminator(tt.strict))
			require.Equal(t, tt.want, readAllLines(t, r))
		})
	}
}

func TestLineReader_LinesSpanChunks(t *testing.T) {
	input := "first line is long\nsecond\nthird line here\n"

	for _, size := range []int{1, 2, 3, 7, 64} {
		r := NewLineReader(strings.NewReader(input), WithChunkSize(size))
		require.Equal(t, []string{"first line is long", "second", "third line here"}, readAllLines(t, r), "chunk size %d", size)
		require.Equal(t, int64(len(input)), r.BytesProcessed())
		require.Equal(t, int64(3), r.LineNumber())
	}
}

func TestLineReader_OneByteReads(t *testing.T) {
	r := NewLineReader(iotest.OneByteReader(strings.NewReader("x\ny")))
	require.Equal(t, []string{"x", "y"}, readAllLines(t, r))
}

func TestLineReader_DataWithEOF(t *testing.T) {
	// Sources may return the final bytes together with io.EOF.
	r := NewLineReader(iotest.DataErrReader(strings.NewReader("a\nb")))
	require.Equal(t, []string{"a", "b"}, readAllLines(t, r))
}

func TestLineReader_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	src := io.MultiReader(strings.NewReader("ok\npartial"), iotest.ErrReader(boom))
	r := NewLineReader(src)

	line, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "ok", string(line))

	_, err = r.Next()
	require.ErrorIs(t, err, ErrMalformedLine)
	require.ErrorIs(t, err, boom)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	require.Equal(t, int64(2), rowErr.Line)
}

func TestLineReader_MaxLineBytes(t *testing.T) {
	r := NewLineReader(strings.NewReader("short\nthis line is too long\n"), WithMaxLineBytes(8), WithChunkSize(4))

	line, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "short", string(line))

	_, err = r.Next()
	require.ErrorIs(t, err, ErrMalformedLine)
}

func TestLineReader_BufferReused(t *testing.T) {
	r := NewLineReader(strings.NewReader("aaaa\nbb\n"))

	first, err := r.Next()
	require.NoError(t, err)
	firstCap := cap(first)

	second, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "bb", string(second))
	require.Equal(t, firstCap, cap(second))
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, nil }

func TestLineReader_NoProgress(t *testing.T) {
	_, err := NewLineReader(emptyReader{}).Next()
	require.ErrorIs(t, err, io.ErrNoProgress)
	require.ErrorIs(t, err, ErrMalformedLine)
}
