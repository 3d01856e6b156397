package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputCodec(t *testing.T) {
	tests := []struct {
		path string
		mode string
		want compress.Type
	}{
		{"", "auto", compress.None},
		{"items.jsonl", "auto", compress.None},
		{"items.jsonl.gz", "auto", compress.Gzip},
		{"items.jsonl.zst", "", compress.Zstd},
		{"items.jsonl", "lz4", compress.LZ4},
		{"items.jsonl.gz", "none", compress.None},
	}
	for _, tt := range tests {
		got, err := outputCodec(tt.path, tt.mode)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, "%s/%s", tt.path, tt.mode)
	}

	_, err := outputCodec("x", "rar")
	assert.ErrorIs(t, err, compress.ErrUnknownType)
}

func TestInputReader(t *testing.T) {
	var gz bytes.Buffer
	zw, err := compress.NewWriter(&gz, compress.Gzip)
	require.NoError(t, err)
	_, _ = io.WriteString(zw, "{\"a\":1}\n")
	require.NoError(t, zw.Close())
	raw := gz.Bytes()

	t.Run("auto sniffs gzip", func(t *testing.T) {
		rc, codec, err := inputReader(bytes.NewReader(raw), "in", "auto")
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, compress.Gzip, codec)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n", string(data))
	})

	t.Run("auto plain", func(t *testing.T) {
		rc, codec, err := inputReader(strings.NewReader("{}\n"), "in", "")
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, compress.None, codec)
	})

	t.Run("explicit mismatch", func(t *testing.T) {
		_, _, err := inputReader(strings.NewReader("{}\n"), "in", "gzip")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open in as gzip")
	})
}

func TestOpenOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.jsonl")

	w, finish, err := openOutput(path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "{}\n")
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	require.NoError(t, finish(nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenOutput_FailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.jsonl")

	w, finish, err := openOutput(path)
	require.NoError(t, err)
	_, _ = io.WriteString(w, "{\"partial\":")

	boom := errors.New("export failed")
	assert.Equal(t, boom, finish(boom))
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintColumns(t *testing.T) {
	var buf bytes.Buffer
	printColumns(&buf, []core.ColumnInfo{
		{Name: "id", TypeName: "int8", TypeID: 20, NotNull: true, Position: 1},
		{Name: "mood", TypeName: "mood", TypeID: 16500, Enum: true, Position: 3},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Regexp(t, `^1\s+id\s+int8\s+20\s+no$`, lines[1])
	assert.Regexp(t, `^3\s+mood\s+mood \(enum\)\s+16500\s+yes$`, lines[2])
}

func TestApp_Formats(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{"jsonlcopy", "formats"}))
	assert.Equal(t, "jsonl\njsonlines\n", out.String())
}

func TestApp_NoDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run([]string{"jsonlcopy", "columns", "--table", "items"})
	assert.ErrorIs(t, err, errNoDatabase)
}
