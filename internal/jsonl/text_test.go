package jsonl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{name: "true", value: Value{Kind: KindBool, Bool: true}, want: "true"},
		{name: "false", value: Value{Kind: KindBool}, want: "false"},
		{name: "string is not re-escaped", value: Value{Kind: KindString, Str: "say \"hi\"\né"}, want: "say \"hi\"\né"},
		{name: "empty string", value: Value{Kind: KindString}, want: ""},
		{name: "integer", value: Value{Kind: KindNumber, Str: "5"}, want: "5"},
		{name: "decimal keeps scale", value: Value{Kind: KindNumber, Str: "1.50"}, want: "1.50"},
		{name: "negative", value: Value{Kind: KindNumber, Str: "-42.1"}, want: "-42.1"},
		{name: "positive exponent", value: Value{Kind: KindNumber, Str: "1.5e2"}, want: "150"},
		{name: "explicit plus exponent", value: Value{Kind: KindNumber, Str: "2E+3"}, want: "2000"},
		{name: "negative exponent", value: Value{Kind: KindNumber, Str: "1e-2"}, want: "0.01"},
		{name: "exponent keeps remaining scale", value: Value{Kind: KindNumber, Str: "1.50e1"}, want: "15.0"},
		{name: "exponent inside digits", value: Value{Kind: KindNumber, Str: "12.345e1"}, want: "123.45"},
		{name: "leading zero mantissa", value: Value{Kind: KindNumber, Str: "0.5e1"}, want: "5"},
		{name: "negative with exponent", value: Value{Kind: KindNumber, Str: "-2.5e-1"}, want: "-0.25"},
		{name: "negative zero", value: Value{Kind: KindNumber, Str: "-0e3"}, want: "0"},
		{name: "negative zero without exponent", value: Value{Kind: KindNumber, Str: "-0"}, want: "0"},
		{name: "negative zero keeps scale", value: Value{Kind: KindNumber, Str: "-0.00"}, want: "0.00"},
		{name: "negative fraction is not zero", value: Value{Kind: KindNumber, Str: "-0.01"}, want: "-0.01"},
		{name: "zero with scale", value: Value{Kind: KindNumber, Str: "0.0e0"}, want: "0.0"},
		{name: "null is empty", value: Value{Kind: KindNull}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText_NestedIsCanonical(t *testing.T) {
	doc, err := NewParser().Parse([]byte(`{"o":{ "b" : [1, 2.50, "x<y"], "a" : {"z":null,"y":true} },"arr":[ {"k":1e2} ]}`))
	require.NoError(t, err)

	o, _ := doc.Member("o")
	got, err := Text(o)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":true,"z":null},"b":[1,2.50,"x<y"]}`, got)

	arr, _ := doc.Member("arr")
	got, err = Text(arr)
	require.NoError(t, err)
	assert.Equal(t, `[{"k":1e2}]`, got)
}

func TestText_UnsupportedKind(t *testing.T) {
	_, err := Text(Value{Kind: Kind(42)})
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestAppendText_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 32)
	buf, err := AppendText(buf[:0], Value{Kind: KindString, Str: "first"})
	require.NoError(t, err)
	buf, err = AppendText(buf[:0], Value{Kind: KindBool, Bool: true})
	require.NoError(t, err)
	assert.Equal(t, "true", string(buf))
	assert.Equal(t, 32, cap(buf))
}
