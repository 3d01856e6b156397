package core

// watcher.go imports JSON Lines files dropped into a directory.
//
// A file named <table>.jsonl, or <table>.<anything>.jsonl, optionally with a
// .gz, .zst or .lz4 suffix, is imported into <table> once it has stopped
// changing for the debounce interval. Afterwards it is moved to imported/ or
// failed/ inside the drop directory.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a dropped file must stay quiet before import.
const DefaultDebounce = 500 * time.Millisecond

const (
	importedDir = "imported"
	failedDir   = "failed"
)

// FileImporter imports one file. *Service implements it.
type FileImporter interface {
	ImportFile(ctx context.Context, table, path string, columns []string) (Session, error)
}

// ImportWatcher watches a drop directory for JSON Lines files.
type ImportWatcher struct {
	dir      string
	importer FileImporter
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// NewImportWatcher creates the drop directory and its imported/ and failed/
// subdirectories, and starts watching. Call Run to process events.
func NewImportWatcher(dir string, importer FileImporter, debounce time.Duration) (*ImportWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	for _, d := range []string{dir, filepath.Join(dir, importedDir), filepath.Join(dir, failedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &ImportWatcher{
		dir:      dir,
		importer: importer,
		debounce: debounce,
		watcher:  w,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// TableForFile returns the target table for a dropped file name, or false
// when the name is not a JSON Lines file.
func TableForFile(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	_, base = compress.FromExtension(base)
	if !strings.EqualFold(filepath.Ext(base), ".jsonl") {
		return "", false
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	table, _, _ := strings.Cut(base, ".")
	if table == "" {
		return "", false
	}
	return table, true
}

// Run processes events until ctx is cancelled, then waits for running
// imports and closes the watcher. Files already present when Run starts are
// imported too.
func (w *ImportWatcher) Run(ctx context.Context) {
	slog.Info("import watcher started", "dir", w.dir)

	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				w.schedule(ctx, filepath.Join(w.dir, e.Name()))
			}
		}
	}

	defer func() {
		w.stopTimers()
		w.wg.Wait()
		w.watcher.Close()
		slog.Info("import watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("import watcher error", "error", err)
		}
	}
}

// schedule (re)arms the debounce timer for path.
func (w *ImportWatcher) schedule(ctx context.Context, path string) {
	table, ok := TableForFile(path)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, exists := w.timers[path]; exists {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		w.importFile(ctx, table, path)
	})
}

func (w *ImportWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *ImportWatcher) importFile(ctx context.Context, table, path string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		// Moved or deleted while debouncing.
		return
	}

	ctx = ContextWithSource(ctx, "watch:"+filepath.Base(path))
	sess, err := w.importer.ImportFile(ctx, table, path, nil)

	dest := importedDir
	if err != nil {
		dest = failedDir
		slog.Error("dropped file import failed", "file", path, "table", table, "error", err)
	} else {
		slog.Info("dropped file imported", "file", path, "table", table, "rows", sess.Rows)
	}

	target := filepath.Join(w.dir, dest, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		slog.Error("move dropped file", "file", path, "to", target, "error", err)
	}
}
