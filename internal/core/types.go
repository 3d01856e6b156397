package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/jackc/pgx/v5"
)

// DBTX is the query surface the catalog needs.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Copier runs a COPY FROM STDIN in binary format.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// RowIterator yields result rows as pgx decodes them. pgx.Rows satisfies it.
type RowIterator interface {
	Next() bool
	Values() ([]any, error)
	Err() error
}

var (
	ErrTableNotFound    = errors.New("table not found")
	ErrColumnNotFound   = errors.New("column not found")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrUnsupportedType  = errors.New("unsupported column type")
	ErrUnknownFormat    = errors.New("unknown copy format")
)

// TableRef names a table, optionally schema-qualified.
type TableRef struct {
	Schema string
	Name   string
}

// ParseTableName parses "table" or "schema.table". Names are taken
// verbatim; no case folding is applied.
func ParseTableName(s string) (TableRef, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return TableRef{Name: parts[0]}, nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return TableRef{Schema: parts[0], Name: parts[1]}, nil
	default:
		return TableRef{}, fmt.Errorf("%w: %q", ErrInvalidTableName, s)
	}
}

// Identifier returns the pgx identifier for the table.
func (t TableRef) Identifier() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

// String returns the unquoted, dotted name.
func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnInfo describes one table column as the catalog reports it.
// Domain columns carry their base type in TypeID and TypeMod.
type ColumnInfo struct {
	Name     string `json:"name"`
	TypeID   uint32 `json:"type_oid"`
	TypeMod  int32  `json:"type_mod"`
	TypeName string `json:"type"`      // declared type, as format_type renders it
	BaseType string `json:"base_type"` // pg_type.typname of the resolved type
	Enum     bool   `json:"enum,omitempty"`
	NotNull  bool   `json:"not_null"`
	Position int16  `json:"position"`
}

// Descriptor returns the column as the copy format sees it.
func (c ColumnInfo) Descriptor() jsonl.Column {
	return jsonl.Column{
		Name:    c.Name,
		TypeID:  c.TypeID,
		TypeMod: c.TypeMod,
	}
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []ColumnInfo) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// CopyStats summarizes one finished copy.
type CopyStats struct {
	Rows     int64  // rows copied
	Bytes    int64  // JSON Lines bytes read or written, before compression
	Checksum string // xxhash64 of the emitted JSON Lines, exports only
}

// SessionStatus is the outcome of a copy session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusComplete  SessionStatus = "complete"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Session is the record kept for one import or export.
type Session struct {
	ID        string        `json:"id"`
	Table     string        `json:"table"`
	Direction string        `json:"direction"`
	Format    string        `json:"format"`
	Source    string        `json:"source"`
	ClientIP  string        `json:"client_ip,omitempty"`
	Status    SessionStatus `json:"status"`
	Rows      int64         `json:"rows"`
	Bytes     int64         `json:"bytes"`
	Checksum  string        `json:"checksum,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}
