package core

// copy.go drives the registered copy format against a database session.
//
// CopyIn feeds a format's CopyFrom routine into pgx's COPY FROM as a
// pgx.CopyFromSource: every OneRow call produces one row for the wire.
// CopyOut drains a RowIterator through the CopyTo routine into a writer.
// Neither function begins or commits a transaction; callers decide the
// transaction scope.

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
)

// CopyOptions tunes the copy format for one session.
type CopyOptions struct {
	Format           string // registered format name; empty means "jsonlines"
	ChunkSize        int    // line reader chunk size
	MaxLineBytes     int    // 0 means unlimited
	StrictTerminator bool   // discard an unterminated final line
	FlushBytes       int    // export write threshold; negative selects the default
}

// DefaultFormat is the format used when none is named.
const DefaultFormat = "jsonlines"

func (o CopyOptions) lineOptions() []jsonl.LineReaderOption {
	return []jsonl.LineReaderOption{
		jsonl.WithChunkSize(o.ChunkSize),
		jsonl.WithMaxLineBytes(o.MaxLineBytes),
		jsonl.WithStrictTerminator(o.StrictTerminator),
	}
}

func routineFor(format string, dir jsonl.Direction) (jsonl.Routine, error) {
	if format == "" {
		format = DefaultFormat
	}
	h, ok := LookupFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return h(dir), nil
}

// CopyIn streams JSON Lines from src into table through copier. Every
// column in cols receives a value (NULL when the key is absent). The first
// bad line aborts the copy; callers roll back.
func CopyIn(ctx context.Context, copier Copier, table TableRef, cols []ColumnInfo,
	catalog jsonl.TypeCatalog, src io.Reader, opts CopyOptions) (CopyStats, error) {
	routine, err := routineFor(opts.Format, jsonl.DirectionFrom)
	if err != nil {
		return CopyStats{}, err
	}
	from, ok := routine.(jsonl.CopyFromRoutine)
	if !ok {
		return CopyStats{}, fmt.Errorf("%w: %q cannot copy from", ErrUnknownFormat, opts.Format)
	}

	descs := make([]jsonl.Column, len(cols))
	for i, c := range cols {
		descs[i] = c.Descriptor()
		if err := from.InFunc(catalog, &descs[i]); err != nil {
			return CopyStats{}, err
		}
	}

	mapper := jsonl.NewMapper(src, descs, nil, opts.lineOptions()...)
	from.Start(mapper)
	defer from.End(mapper)

	source := &rowSource{
		ctx:     ctx,
		routine: from,
		mapper:  mapper,
		values:  make([]any, len(descs)),
		nulls:   make([]bool, len(descs)),
	}

	n, err := copier.CopyFrom(ctx, table.Identifier(), ColumnNames(cols), source)
	stats := CopyStats{Rows: n, Bytes: mapper.BytesProcessed()}
	if source.err != nil {
		// pgx reports the source error wrapped; surface ours unchanged.
		return stats, source.err
	}
	if err != nil {
		return stats, fmt.Errorf("copy into %s: %w", table, err)
	}
	return stats, nil
}

// rowSource adapts a CopyFromRoutine to pgx.CopyFromSource.
type rowSource struct {
	ctx     context.Context
	routine jsonl.CopyFromRoutine
	mapper  *jsonl.Mapper
	values  []any
	nulls   []bool
	err     error
}

var _ pgx.CopyFromSource = (*rowSource)(nil)

func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	ok, err := s.routine.OneRow(s.mapper, s.values, s.nulls)
	if err != nil {
		s.err = err
		return false
	}
	return ok
}

func (s *rowSource) Values() ([]any, error) {
	return s.values, nil
}

func (s *rowSource) Err() error {
	return s.err
}

// CopyOut writes every row of rows to dst as JSON Lines. The checksum is an
// xxhash64 over the bytes written.
func CopyOut(ctx context.Context, rows RowIterator, cols []ColumnInfo, dst io.Writer, opts CopyOptions) (CopyStats, error) {
	routine, err := routineFor(opts.Format, jsonl.DirectionTo)
	if err != nil {
		return CopyStats{}, err
	}
	to, ok := routine.(jsonl.CopyToRoutine)
	if !ok {
		return CopyStats{}, fmt.Errorf("%w: %q cannot copy to", ErrUnknownFormat, opts.Format)
	}

	for _, c := range cols {
		desc := c.Descriptor()
		if err := to.OutFunc(&desc); err != nil {
			return CopyStats{}, err
		}
	}

	hash := xxhash.New()
	buf := jsonl.NewRecordBuffer(io.MultiWriter(dst, hash), opts.FlushBytes)
	ser := jsonl.NewSerializer(NewColumnEncoder(cols), buf)

	to.Start(ser)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return CopyStats{Rows: ser.Rows(), Bytes: buf.Written()}, err
		}
		values, err := rows.Values()
		if err != nil {
			return CopyStats{Rows: ser.Rows(), Bytes: buf.Written()}, fmt.Errorf("read row %d: %w", ser.Rows()+1, err)
		}
		if err := to.OneRow(ser, values); err != nil {
			return CopyStats{Rows: ser.Rows(), Bytes: buf.Written()}, err
		}
	}
	to.End(ser)

	if err := rows.Err(); err != nil {
		return CopyStats{Rows: ser.Rows(), Bytes: buf.Written()}, fmt.Errorf("read rows: %w", err)
	}
	if err := buf.Close(); err != nil {
		return CopyStats{Rows: ser.Rows(), Bytes: buf.Written()}, err
	}

	return CopyStats{
		Rows:     ser.Rows(),
		Bytes:    buf.Written(),
		Checksum: strconv.FormatUint(hash.Sum64(), 16),
	}, nil
}

// SelectQuery builds the export query for cols of table.
func SelectQuery(table TableRef, cols []ColumnInfo) string {
	q := "SELECT "
	for i, c := range cols {
		if i > 0 {
			q += ", "
		}
		q += selectExpr(c)
	}
	return q + " FROM " + table.Identifier().Sanitize()
}
