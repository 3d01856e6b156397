package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/JonMunkholm/jsonlcopy/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultCopyTimeout bounds a single import or export.
const DefaultCopyTimeout = 30 * time.Minute

// Options configures a Service.
type Options struct {
	Copy        CopyOptions
	Timeout     time.Duration // per session; <= 0 selects DefaultCopyTimeout
	HistorySize int
}

// Service runs JSON Lines imports and exports against a PostgreSQL pool.
type Service struct {
	pool    *pgxpool.Pool
	limiter *CopyLimiter
	history *History
	opts    Options
}

// NewService creates a Service. A nil limiter allows
// DefaultMaxConcurrentCopies sessions.
func NewService(pool *pgxpool.Pool, limiter *CopyLimiter, opts Options) *Service {
	if limiter == nil {
		limiter = NewCopyLimiter(0, 0)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCopyTimeout
	}
	return &Service{
		pool:    pool,
		limiter: limiter,
		history: NewHistory(opts.HistorySize),
		opts:    opts,
	}
}

// Limiter returns the session limiter.
func (s *Service) Limiter() *CopyLimiter { return s.limiter }

// History returns the session history.
func (s *Service) History() *History { return s.history }

// Ping checks database connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Columns returns the copyable columns of table, narrowed to subset when
// one is given.
func (s *Service) Columns(ctx context.Context, table string, subset ...string) ([]ColumnInfo, error) {
	ref, err := ParseTableName(table)
	if err != nil {
		return nil, err
	}
	return LoadColumns(ctx, s.pool, ref, subset)
}

// ImportRequest describes one import.
type ImportRequest struct {
	Table   string
	Columns []string // optional subset; table order is kept
	Format  string   // empty means DefaultFormat
	Body    io.Reader
}

// ExportRequest describes one export.
type ExportRequest struct {
	Table   string
	Columns []string
	Format  string
}

// Import loads req.Body into req.Table in a single transaction. Either every
// line becomes a row or none does.
func (s *Service) Import(ctx context.Context, req ImportRequest) (Session, error) {
	ref, err := ParseTableName(req.Table)
	if err != nil {
		return Session{}, err
	}

	sess, log := s.begin(ctx, ref, jsonl.DirectionFrom, req.Format)
	stats, err := s.runImport(ctx, ref, req, log)
	return s.finish(sess, log, stats, err)
}

func (s *Service) runImport(ctx context.Context, ref TableRef, req ImportRequest, log *slog.Logger) (CopyStats, error) {
	if err := s.limiter.Acquire(ctx, jsonl.DirectionFrom); err != nil {
		return CopyStats{}, err
	}
	defer s.limiter.Release(jsonl.DirectionFrom)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return CopyStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return CopyStats{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	cols, err := LoadColumns(ctx, tx, ref, req.Columns)
	if err != nil {
		return CopyStats{}, err
	}
	log.Debug("columns loaded", "columns", len(cols))

	typeMap := conn.Conn().TypeMap()
	RegisterEnumTypes(typeMap, cols)

	opts := s.opts.Copy
	if req.Format != "" {
		opts.Format = req.Format
	}

	stats, err := CopyIn(ctx, tx, ref, cols, NewPgTypeCatalog(typeMap), NewBOMSkippingReader(req.Body), opts)
	if err != nil {
		return stats, err
	}
	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

// Export writes req.Table to w as JSON Lines from one consistent snapshot.
func (s *Service) Export(ctx context.Context, req ExportRequest, w io.Writer) (Session, error) {
	ref, err := ParseTableName(req.Table)
	if err != nil {
		return Session{}, err
	}

	sess, log := s.begin(ctx, ref, jsonl.DirectionTo, req.Format)
	stats, err := s.runExport(ctx, ref, req, w)
	return s.finish(sess, log, stats, err)
}

func (s *Service) runExport(ctx context.Context, ref TableRef, req ExportRequest, w io.Writer) (CopyStats, error) {
	if err := s.limiter.Acquire(ctx, jsonl.DirectionTo); err != nil {
		return CopyStats{}, err
	}
	defer s.limiter.Release(jsonl.DirectionTo)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return CopyStats{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only

	cols, err := LoadColumns(ctx, tx, ref, req.Columns)
	if err != nil {
		return CopyStats{}, err
	}

	rows, err := tx.Query(ctx, SelectQuery(ref, cols))
	if err != nil {
		return CopyStats{}, fmt.Errorf("query %s: %w", ref, err)
	}
	defer rows.Close()

	opts := s.opts.Copy
	if req.Format != "" {
		opts.Format = req.Format
	}
	return CopyOut(ctx, rows, cols, w, opts)
}

// ImportFile imports a JSON Lines file, decompressing it when its content
// is gzip, zstd or lz4.
func (s *Service) ImportFile(ctx context.Context, table, path string, columns []string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	body, _, err := compress.OpenReader(f)
	if err != nil {
		return Session{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer body.Close()

	return s.Import(ctx, ImportRequest{Table: table, Columns: columns, Body: body})
}

// ExportFile writes table into dir as <table>-<UTC timestamp>.jsonl plus
// the codec's extension, and returns the file's path. The file only appears
// under its final name once the export succeeded.
func (s *Service) ExportFile(ctx context.Context, table, dir string, codec compress.Type) (string, Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Session{}, fmt.Errorf("create export dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.jsonl%s",
		strings.ReplaceAll(table, string(filepath.Separator), "_"),
		time.Now().UTC().Format("20060102T150405Z"),
		codec.Extension())
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", Session{}, fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	zw, err := compress.NewWriter(tmp, codec)
	if err != nil {
		tmp.Close()
		return "", Session{}, err
	}

	sess, err := s.Export(ctx, ExportRequest{Table: table}, zw)
	if cerr := zw.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("finish %s stream: %w", codec, cerr)
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close export file: %w", cerr)
	}
	if err != nil {
		return "", sess, err
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", sess, fmt.Errorf("publish export file: %w", err)
	}
	return final, sess, nil
}

func (s *Service) begin(ctx context.Context, ref TableRef, dir jsonl.Direction, format string) (Session, *slog.Logger) {
	if format == "" {
		format = s.opts.Copy.Format
	}
	if format == "" {
		format = DefaultFormat
	}

	sess := Session{
		ID:        NewSessionID(),
		Table:     ref.String(),
		Direction: dir.String(),
		Format:    format,
		Source:    GetSourceFromContext(ctx),
		ClientIP:  GetIPAddressFromContext(ctx),
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	s.history.Record(sess)

	log := logging.ForSession(ctx, sess.ID, sess.Table, sess.Direction)
	log.Info("copy started", "format", format, "source", sess.Source)
	return sess, log
}

func (s *Service) finish(sess Session, log *slog.Logger, stats CopyStats, err error) (Session, error) {
	sess.Duration = time.Since(sess.StartedAt)
	sess.Rows = stats.Rows
	sess.Bytes = stats.Bytes
	sess.Checksum = stats.Checksum

	switch {
	case err == nil:
		sess.Status = StatusComplete
		log.Info("copy completed",
			"rows", stats.Rows,
			"bytes", stats.Bytes,
			"checksum", stats.Checksum,
			"duration_ms", sess.Duration.Milliseconds(),
		)
	case errors.Is(err, context.Canceled):
		sess.Status = StatusCancelled
		sess.Error = err.Error()
		sess.ErrorCode = MapError(err).Code
		log.Warn("copy cancelled", "rows", stats.Rows, "error", err)
	default:
		sess.Status = StatusFailed
		sess.Error = err.Error()
		sess.ErrorCode = MapError(err).Code
		log.Error("copy failed", "rows", stats.Rows, "code", sess.ErrorCode, "error", err)
	}

	s.history.Record(sess)
	return sess, err
}
