package core

// scheduler.go runs periodic exports.
//
// A robfig/cron schedule fires export jobs that write every configured table
// into the export directory. A failed table is logged and the job moves on
// to the next one; the scheduler itself never stops on job errors.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/robfig/cron/v3"
)

// ExportSchedule configures the export scheduler.
type ExportSchedule struct {
	Spec   string        // standard 5-field cron expression or @every/@daily descriptor
	Tables []string      // tables to export on every run
	Dir    string        // destination directory
	Codec  compress.Type // file compression
}

// FileExporter writes one table into a directory. *Service implements it.
type FileExporter interface {
	ExportFile(ctx context.Context, table, dir string, codec compress.Type) (string, Session, error)
}

// ExportScheduler owns the cron instance behind scheduled exports.
type ExportScheduler struct {
	cron     *cron.Cron
	exporter FileExporter
	cfg      ExportSchedule
}

// NewExportScheduler validates cfg and prepares a scheduler. It does not
// start running until Start.
func NewExportScheduler(exporter FileExporter, cfg ExportSchedule) (*ExportScheduler, error) {
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("export schedule has no tables")
	}
	s := &ExportScheduler{
		cron:     cron.New(),
		exporter: exporter,
		cfg:      cfg,
	}
	return s, nil
}

// Start registers the job and starts the cron loop. The scheduler stops
// when ctx is cancelled; running jobs see the same cancellation.
func (s *ExportScheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid export schedule %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()

	slog.Info("export scheduler started",
		"schedule", s.cfg.Spec,
		"tables", s.cfg.Tables,
		"dir", s.cfg.Dir,
		"compression", s.cfg.Codec.String(),
	)

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		slog.Info("export scheduler stopped")
	}()
	return nil
}

// RunOnce exports every configured table once and returns how many
// succeeded.
func (s *ExportScheduler) RunOnce(ctx context.Context) int {
	start := time.Now()
	ctx = ContextWithSource(ctx, "schedule")

	ok := 0
	for _, table := range s.cfg.Tables {
		if ctx.Err() != nil {
			break
		}
		path, sess, err := s.exporter.ExportFile(ctx, table, s.cfg.Dir, s.cfg.Codec)
		if err != nil {
			slog.Error("scheduled export failed", "table", table, "error", err)
			continue
		}
		ok++
		slog.Info("scheduled export written",
			"table", table,
			"path", path,
			"rows", sess.Rows,
			"checksum", sess.Checksum,
		)
	}

	slog.Info("export job completed",
		"tables", len(s.cfg.Tables),
		"succeeded", ok,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ok
}
