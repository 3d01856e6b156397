package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	mu      sync.Mutex
	tables  []string
	sources []string
	fail    map[string]bool
}

func (e *fakeExporter) ExportFile(ctx context.Context, table, dir string, codec compress.Type) (string, Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables = append(e.tables, table)
	e.sources = append(e.sources, GetSourceFromContext(ctx))
	if e.fail[table] {
		return "", Session{}, errors.New("relation does not exist")
	}
	return dir + "/" + table + codec.Extension(), Session{Table: table, Rows: 1}, nil
}

func TestNewExportScheduler_NoTables(t *testing.T) {
	_, err := NewExportScheduler(&fakeExporter{}, ExportSchedule{Spec: "@daily"})
	require.Error(t, err)
}

func TestExportScheduler_RunOnce(t *testing.T) {
	exp := &fakeExporter{fail: map[string]bool{"missing": true}}
	s, err := NewExportScheduler(exp, ExportSchedule{
		Spec:   "@hourly",
		Tables: []string{"items", "missing", "orders"},
		Dir:    t.TempDir(),
		Codec:  compress.Zstd,
	})
	require.NoError(t, err)

	ok := s.RunOnce(context.Background())

	assert.Equal(t, 2, ok)
	assert.Equal(t, []string{"items", "missing", "orders"}, exp.tables)
	assert.Equal(t, []string{"schedule", "schedule", "schedule"}, exp.sources)
}

func TestExportScheduler_RunOnceCancelled(t *testing.T) {
	exp := &fakeExporter{}
	s, err := NewExportScheduler(exp, ExportSchedule{Spec: "@hourly", Tables: []string{"a", "b"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Zero(t, s.RunOnce(ctx))
	assert.Empty(t, exp.tables)
}

func TestExportScheduler_InvalidSpec(t *testing.T) {
	s, err := NewExportScheduler(&fakeExporter{}, ExportSchedule{Spec: "every tuesday", Tables: []string{"a"}})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid export schedule")
}

func TestExportScheduler_StartStop(t *testing.T) {
	s, err := NewExportScheduler(&fakeExporter{}, ExportSchedule{Spec: "@every 1h", Tables: []string{"a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
}
