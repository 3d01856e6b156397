package core

// catalog.go reads column descriptors from the PostgreSQL system catalogs.
//
// Columns come back in attnum order. Dropped, system and generated columns
// are skipped because COPY cannot target them. Domain columns resolve to
// their base type so the base type's codec does the conversion; the server
// still checks domain constraints when the row is inserted.

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const relationQuery = `SELECT to_regclass($1)::oid`

const columnsQuery = `
SELECT a.attname,
       CASE WHEN t.typtype = 'd' THEN t.typbasetype ELSE a.atttypid END,
       CASE WHEN t.typtype = 'd' THEN t.typtypmod ELSE a.atttypmod END,
       format_type(a.atttypid, a.atttypmod),
       bt.typname::text,
       bt.typtype::text,
       a.attnotnull,
       a.attnum
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
JOIN pg_catalog.pg_type bt
  ON bt.oid = CASE WHEN t.typtype = 'd' THEN t.typbasetype ELSE a.atttypid END
WHERE a.attrelid = $1
  AND a.attnum > 0
  AND NOT a.attisdropped
  AND a.attgenerated = ''
ORDER BY a.attnum`

// LoadColumns returns the copyable columns of table in table order. When
// subset is non-empty only the named columns are returned, still in table
// order; naming an unknown column or the same column twice is an error.
func LoadColumns(ctx context.Context, db DBTX, table TableRef, subset []string) ([]ColumnInfo, error) {
	var relID *uint32
	if err := db.QueryRow(ctx, relationQuery, table.Identifier().Sanitize()).Scan(&relID); err != nil {
		return nil, fmt.Errorf("resolve table %s: %w", table, err)
	}
	if relID == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	rows, err := db.Query(ctx, columnsQuery, *relID)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, scanColumn)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}

	return selectColumns(table, cols, subset)
}

func scanColumn(row pgx.CollectableRow) (ColumnInfo, error) {
	var (
		c       ColumnInfo
		typtype string
	)
	err := row.Scan(&c.Name, &c.TypeID, &c.TypeMod, &c.TypeName, &c.BaseType, &typtype, &c.NotNull, &c.Position)
	c.Enum = typtype == "e"
	return c, err
}

// selectColumns narrows cols to subset, keeping table order.
func selectColumns(table TableRef, cols []ColumnInfo, subset []string) ([]ColumnInfo, error) {
	if len(subset) == 0 {
		return cols, nil
	}

	wanted := make(map[string]bool, len(subset))
	for _, name := range subset {
		name = strings.TrimSpace(name)
		if wanted[name] {
			return nil, fmt.Errorf("column %q specified more than once", name)
		}
		wanted[name] = true
	}

	out := make([]ColumnInfo, 0, len(subset))
	for _, c := range cols {
		if wanted[c.Name] {
			out = append(out, c)
			delete(wanted, c.Name)
		}
	}
	for _, name := range subset {
		if wanted[strings.TrimSpace(name)] {
			return nil, fmt.Errorf("%w: %q in %s", ErrColumnNotFound, name, table)
		}
	}
	return out, nil
}

// ParseColumnList splits a comma-separated column list. Blank entries are
// dropped.
func ParseColumnList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RegisterEnumTypes teaches m about enum columns it has no codec for. Enum
// values travel as their label text.
func RegisterEnumTypes(m *pgtype.Map, cols []ColumnInfo) {
	for _, c := range cols {
		if !c.Enum {
			continue
		}
		if _, ok := m.TypeForOID(c.TypeID); ok {
			continue
		}
		m.RegisterType(&pgtype.Type{Name: c.BaseType, OID: c.TypeID, Codec: &pgtype.EnumCodec{}})
	}
}
