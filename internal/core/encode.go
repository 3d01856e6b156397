package core

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	jsoniter "github.com/json-iterator/go"
)

// rowJSON writes nested json/jsonb values with sorted keys and without HTML
// escaping, matching the canonical nested form used on ingest.
var rowJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

const (
	dateLayout        = "2006-01-02"
	timestampLayout   = "2006-01-02T15:04:05.999999"
	timestamptzLayout = "2006-01-02T15:04:05.999999-07:00"
)

// ColumnEncoder renders []any rows, as returned by pgx.Rows.Values, as one
// JSON object per row. Keys follow column order. It is not safe for
// concurrent use.
type ColumnEncoder struct {
	names  []string
	oids   []uint32
	stream *jsoniter.Stream
}

var _ jsonl.RowEncoder = (*ColumnEncoder)(nil)

// NewColumnEncoder returns an encoder for rows shaped like cols.
func NewColumnEncoder(cols []ColumnInfo) *ColumnEncoder {
	e := &ColumnEncoder{
		names:  make([]string, len(cols)),
		oids:   make([]uint32, len(cols)),
		stream: jsoniter.NewStream(rowJSON, nil, 512),
	}
	for i, c := range cols {
		e.names[i] = c.Name
		e.oids[i] = c.TypeID
	}
	return e
}

// AppendRow implements jsonl.RowEncoder.
func (e *ColumnEncoder) AppendRow(dst []byte, row any) ([]byte, error) {
	values, ok := row.([]any)
	if !ok {
		return dst, fmt.Errorf("row has type %T, want []any", row)
	}
	if len(values) != len(e.names) {
		return dst, fmt.Errorf("row has %d values, want %d", len(values), len(e.names))
	}

	s := e.stream
	s.SetBuffer(dst)
	s.Error = nil

	s.WriteObjectStart()
	for i, v := range values {
		if i > 0 {
			s.WriteMore()
		}
		s.WriteObjectField(e.names[i])
		if err := writeValue(s, e.oids[i], v); err != nil {
			return dst, fmt.Errorf("column %q: %w", e.names[i], err)
		}
	}
	s.WriteObjectEnd()

	out := s.Buffer()
	s.SetBuffer(nil)
	if s.Error != nil {
		return dst, s.Error
	}
	return out, nil
}

func writeValue(s *jsoniter.Stream, oid uint32, v any) error {
	switch v := v.(type) {
	case nil:
		s.WriteNil()
	case bool:
		s.WriteBool(v)
	case int8:
		s.WriteInt8(v)
	case int16:
		s.WriteInt16(v)
	case int32:
		s.WriteInt32(v)
	case int64:
		s.WriteInt64(v)
	case int:
		s.WriteInt(v)
	case uint8:
		s.WriteUint8(v)
	case uint16:
		s.WriteUint16(v)
	case uint32:
		s.WriteUint32(v)
	case uint64:
		s.WriteUint64(v)
	case float32:
		writeFloat(s, float64(v), 32)
	case float64:
		writeFloat(s, v, 64)
	case string:
		if isJSONType(oid) {
			return writeStoredJSON(s, []byte(v))
		}
		s.WriteString(v)
	case []byte:
		if isJSONType(oid) {
			return writeStoredJSON(s, v)
		}
		s.WriteString(`\x` + hex.EncodeToString(v))
	case time.Time:
		s.WriteString(formatTime(oid, v))
	case [16]byte:
		s.WriteString(uuid.UUID(v).String())
	case pgtype.Numeric:
		writeNumeric(s, v)
	case []any:
		s.WriteArrayStart()
		for i, elem := range v {
			if i > 0 {
				s.WriteMore()
			}
			if err := writeValue(s, elemOID(oid), elem); err != nil {
				return err
			}
		}
		s.WriteArrayEnd()
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return err
		}
		if _, again := dv.(driver.Valuer); again {
			return fmt.Errorf("value %T does not reduce to a driver value", v)
		}
		return writeValue(s, oid, dv)
	case fmt.Stringer:
		s.WriteString(v.String())
	default:
		s.WriteVal(v)
	}
	return s.Error
}

// writeFloat matches float8out: shortest representation, with NaN and the
// infinities as strings since JSON has no literal for them.
func writeFloat(s *jsoniter.Stream, f float64, bits int) {
	switch {
	case math.IsNaN(f):
		s.WriteString("NaN")
	case math.IsInf(f, 1):
		s.WriteString("Infinity")
	case math.IsInf(f, -1):
		s.WriteString("-Infinity")
	default:
		s.WriteRaw(strconv.FormatFloat(f, 'g', -1, bits))
	}
}

func writeNumeric(s *jsoniter.Stream, n pgtype.Numeric) {
	if !n.Valid {
		s.WriteNil()
		return
	}
	dv, err := n.Value()
	if err != nil {
		s.Error = err
		return
	}
	text, _ := dv.(string)
	if jsonl.IsNumber(text) {
		s.WriteRaw(text)
		return
	}
	s.WriteString(text)
}

func isJSONType(oid uint32) bool {
	return oid == pgtype.JSONOID || oid == pgtype.JSONBOID
}

// writeStoredJSON copies json/jsonb text as stored: number literals, scale
// and key order are kept. Line breaks between tokens, legal in a json
// column, are removed so the value stays on its record's line.
func writeStoredJSON(s *jsoniter.Stream, text []byte) error {
	if bytes.ContainsAny(text, "\r\n") {
		var compact bytes.Buffer
		if err := json.Compact(&compact, text); err != nil {
			return fmt.Errorf("stored json: %w", err)
		}
		text = compact.Bytes()
	}
	s.WriteRaw(string(text))
	return s.Error
}

// selectExpr reads json and jsonb columns as text so their stored form
// reaches the encoder instead of a decoded map with float64 numbers.
func selectExpr(c ColumnInfo) string {
	name := pgx.Identifier{c.Name}.Sanitize()
	switch c.TypeID {
	case pgtype.JSONOID, pgtype.JSONBOID:
		return name + "::text AS " + name
	case pgtype.JSONArrayOID, pgtype.JSONBArrayOID:
		return name + "::text[] AS " + name
	}
	return name
}

func formatTime(oid uint32, t time.Time) string {
	switch oid {
	case pgtype.DateOID:
		return t.Format(dateLayout)
	case pgtype.TimestampOID:
		return t.Format(timestampLayout)
	default:
		return t.Format(timestamptzLayout)
	}
}

// elemOID maps the array types whose elements need type-specific rendering.
func elemOID(oid uint32) uint32 {
	switch oid {
	case pgtype.DateArrayOID:
		return pgtype.DateOID
	case pgtype.TimestampArrayOID:
		return pgtype.TimestampOID
	case pgtype.TimestamptzArrayOID:
		return pgtype.TimestamptzOID
	case pgtype.JSONArrayOID:
		return pgtype.JSONOID
	case pgtype.JSONBArrayOID:
		return pgtype.JSONBOID
	case pgtype.ByteaArrayOID:
		return pgtype.ByteaOID
	default:
		return oid
	}
}
