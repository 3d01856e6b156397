package core

// convert.go turns the canonical text of a JSON field into the Go value pgx
// encodes for the column's type.
//
// Conversion goes through the connection's pgtype.Map: the text is scanned in
// text format by the type's codec, exactly as if the server had sent it. That
// gives every built-in type (and registered enums) the same parser the
// driver already uses, so "1.50" becomes pgtype.Numeric, "2024-01-15" a
// time.Time, "t" a bool, and so on.

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/jackc/pgx/v5/pgtype"
	jsoniter "github.com/json-iterator/go"
)

// PgTypeCatalog resolves column types against a pgtype.Map.
type PgTypeCatalog struct {
	m *pgtype.Map
}

var _ jsonl.TypeCatalog = (*PgTypeCatalog)(nil)

// NewPgTypeCatalog returns a catalog over m. A nil m uses a fresh
// pgtype.NewMap with only the built-in types.
func NewPgTypeCatalog(m *pgtype.Map) *PgTypeCatalog {
	if m == nil {
		m = pgtype.NewMap()
	}
	return &PgTypeCatalog{m: m}
}

// InputFunc implements jsonl.TypeCatalog. The returned ioParam is the type
// OID itself.
func (c *PgTypeCatalog) InputFunc(typeID uint32) (jsonl.InputConverter, uint32, error) {
	if _, ok := c.m.TypeForOID(typeID); !ok {
		return nil, 0, fmt.Errorf("%w: oid %d", ErrUnsupportedType, typeID)
	}
	return pgInput{m: c.m}, typeID, nil
}

type pgInput struct {
	m *pgtype.Map
}

// Convert implements jsonl.InputConverter.
func (in pgInput) Convert(text string, oid uint32, typeMod int32) (any, error) {
	text, err := applyLengthTypeMod(oid, text, typeMod)
	if err != nil {
		return nil, err
	}

	switch oid {
	case pgtype.JSONOID, pgtype.JSONBOID:
		// Sent verbatim; decoding would round numbers through float64.
		if !jsoniter.ConfigCompatibleWithStandardLibrary.Valid([]byte(text)) {
			return nil, fmt.Errorf("invalid input syntax for type json")
		}
		return text, nil
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID:
		return text, nil
	}

	var v any
	if err := in.m.Scan(oid, pgtype.TextFormatCode, []byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// varHeaderSize is the offset PostgreSQL adds to length type modifiers.
const varHeaderSize = 4

// applyLengthTypeMod enforces varchar(n) and char(n). Like the server, it
// silently drops excess characters when they are all spaces, and pads
// char(n) values to n.
func applyLengthTypeMod(oid uint32, text string, typeMod int32) (string, error) {
	if typeMod < varHeaderSize || (oid != pgtype.VarcharOID && oid != pgtype.BPCharOID) {
		return text, nil
	}
	limit := int(typeMod - varHeaderSize)
	n := utf8.RuneCountInString(text)

	if n > limit {
		cut := 0
		for i := range text {
			if cut == limit {
				if strings.Trim(text[i:], " ") != "" {
					return "", fmt.Errorf("value too long for type %s(%d)", lengthTypeName(oid), limit)
				}
				text = text[:i]
				break
			}
			cut++
		}
		n = limit
	}

	if oid == pgtype.BPCharOID && n < limit {
		text += strings.Repeat(" ", limit-n)
	}
	return text, nil
}

func lengthTypeName(oid uint32) string {
	if oid == pgtype.BPCharOID {
		return "character"
	}
	return "character varying"
}
