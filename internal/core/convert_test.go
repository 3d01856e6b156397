package core

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convert(t *testing.T, c *PgTypeCatalog, oid uint32, typeMod int32, text string) (any, error) {
	t.Helper()
	in, ioParam, err := c.InputFunc(oid)
	require.NoError(t, err)
	assert.Equal(t, oid, ioParam)
	return in.Convert(text, ioParam, typeMod)
}

func TestPgTypeCatalog_Convert(t *testing.T) {
	c := NewPgTypeCatalog(nil)

	tests := []struct {
		name string
		oid  uint32
		text string
		want any
	}{
		{name: "int4", oid: pgtype.Int4OID, text: "42", want: int32(42)},
		{name: "int8", oid: pgtype.Int8OID, text: "9007199254740993", want: int64(9007199254740993)},
		{name: "bool", oid: pgtype.BoolOID, text: "true", want: true},
		{name: "float8", oid: pgtype.Float8OID, text: "0.25", want: 0.25},
		{name: "text", oid: pgtype.TextOID, text: "héllo", want: "héllo"},
		{name: "json object", oid: pgtype.JSONBOID, text: `{"a":1}`, want: `{"a":1}`},
		{name: "date", oid: pgtype.DateOID, text: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{
			name: "uuid",
			oid:  pgtype.UUIDOID,
			text: "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11",
			want: [16]byte{0xa0, 0xee, 0xbc, 0x99, 0x9c, 0x0b, 0x4e, 0xf8, 0xbb, 0x6d, 0x6b, 0xb9, 0xbd, 0x38, 0x0a, 0x11},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(t, c, tt.oid, -1, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPgTypeCatalog_Numeric(t *testing.T) {
	got, err := convert(t, NewPgTypeCatalog(nil), pgtype.NumericOID, -1, "1.50")
	require.NoError(t, err)

	n, ok := got.(pgtype.Numeric)
	require.True(t, ok, "got %T", got)
	v, err := n.Value()
	require.NoError(t, err)
	assert.Equal(t, "1.50", v)
}

func TestPgTypeCatalog_Rejects(t *testing.T) {
	c := NewPgTypeCatalog(nil)

	_, err := convert(t, c, pgtype.Int4OID, -1, "abc")
	assert.Error(t, err)

	_, err = convert(t, c, pgtype.Int4OID, -1, "1.5")
	assert.Error(t, err)

	_, err = convert(t, c, pgtype.JSONOID, -1, "not json")
	assert.Error(t, err)

	_, _, err = c.InputFunc(4242424)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPgTypeCatalog_Enum(t *testing.T) {
	m := pgtype.NewMap()
	RegisterEnumTypes(m, []ColumnInfo{{Name: "mood", TypeID: 90002, BaseType: "mood", Enum: true}})

	got, err := convert(t, NewPgTypeCatalog(m), 90002, -1, "happy")
	require.NoError(t, err)
	assert.Equal(t, "happy", got)
}

func TestApplyLengthTypeMod(t *testing.T) {
	tests := []struct {
		name    string
		oid     uint32
		typeMod int32
		text    string
		want    string
		wantErr bool
	}{
		{name: "varchar fits", oid: pgtype.VarcharOID, typeMod: 14, text: "hello", want: "hello"},
		{name: "varchar exact", oid: pgtype.VarcharOID, typeMod: 9, text: "héllo", want: "héllo"},
		{name: "varchar too long", oid: pgtype.VarcharOID, typeMod: 9, text: "hello!", wantErr: true},
		{name: "varchar trailing spaces trimmed", oid: pgtype.VarcharOID, typeMod: 9, text: "hello   ", want: "hello"},
		{name: "char pads", oid: pgtype.BPCharOID, typeMod: 7, text: "ab", want: "ab "},
		{name: "char too long", oid: pgtype.BPCharOID, typeMod: 5, text: "ab", wantErr: true},
		{name: "unbounded varchar", oid: pgtype.VarcharOID, typeMod: -1, text: "anything", want: "anything"},
		{name: "other types ignore typmod", oid: pgtype.TextOID, typeMod: 5, text: "longer text", want: "longer text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyLengthTypeMod(tt.oid, tt.text, tt.typeMod)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "value too long")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
