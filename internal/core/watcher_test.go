package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	mu     sync.Mutex
	calls  map[string]string // path -> table
	failOn string
}

func (f *fakeImporter) ImportFile(ctx context.Context, table, path string, columns []string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]string)
	}
	f.calls[path] = table
	if f.failOn == table {
		return Session{}, errors.New("line 3: invalid JSON")
	}
	return Session{Table: table, Rows: 2}, nil
}

func (f *fakeImporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestTableForFile(t *testing.T) {
	tests := []struct {
		name  string
		table string
		ok    bool
	}{
		{"items.jsonl", "items", true},
		{"items.2024-01-15.jsonl", "items", true},
		{"items.jsonl.gz", "items", true},
		{"items.JSONL.zst", "items", true},
		{"/drop/orders.jsonl.lz4", "orders", true},
		{"items.csv", "", false},
		{"items.json", "", false},
		{".items.jsonl", "", false},
		{".jsonl", "", false},
		{"items.jsonl.tmp", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, ok := TableForFile(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.table, table)
		})
	}
}

func TestNewImportWatcher_CreatesDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drop")
	w, err := NewImportWatcher(dir, &fakeImporter{}, 0)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.DirExists(t, filepath.Join(dir, "imported"))
	assert.DirExists(t, filepath.Join(dir, "failed"))
}

func TestImportWatcher_ImportFileMovesFile(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{failOn: "bad"}
	w, err := NewImportWatcher(dir, imp, time.Millisecond)
	require.NoError(t, err)
	defer w.watcher.Close()

	good := filepath.Join(dir, "items.jsonl")
	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(good, []byte(`{"id":1}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("{\n"), 0o644))

	w.importFile(context.Background(), "items", good)
	w.importFile(context.Background(), "bad", bad)

	assert.FileExists(t, filepath.Join(dir, "imported", "items.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "failed", "bad.jsonl"))
	assert.NoFileExists(t, good)
	assert.NoFileExists(t, bad)
}

func TestImportWatcher_ImportFileGone(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}
	w, err := NewImportWatcher(dir, imp, time.Millisecond)
	require.NoError(t, err)
	defer w.watcher.Close()

	w.importFile(context.Background(), "items", filepath.Join(dir, "items.jsonl"))
	assert.Zero(t, imp.count())
}

func TestImportWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "early.jsonl"), []byte("{}\n"), 0o644))

	imp := &fakeImporter{}
	w, err := NewImportWatcher(dir, imp, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return imp.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.FileExists(t, filepath.Join(dir, "imported", "early.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "imported", "late.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}
