package jsonl

import (
	"fmt"
	"strconv"
	"strings"
)

// AppendText appends the canonical text form of v to dst.
//
// Conversion is structural and only fails for a kind the parser never
// produces. A null value appends nothing; callers null the column instead.
func AppendText(dst []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return dst, nil
	case KindBool:
		return strconv.AppendBool(dst, v.Bool), nil
	case KindString:
		return append(dst, v.Str...), nil
	case KindNumber:
		return appendCanonicalNumber(dst, v.Str), nil
	case KindNested:
		enc, err := jsonAPI.Marshal(v.Nested)
		if err != nil {
			return dst, fmt.Errorf("%w: %s: %w", ErrUnsupportedKind, v.Kind, err)
		}
		return append(dst, enc...), nil
	default:
		return dst, fmt.Errorf("%w: %s", ErrUnsupportedKind, v.Kind)
	}
}

// Text returns the canonical text form of v.
func Text(v Value) (string, error) {
	b, err := AppendText(nil, v)
	return string(b), err
}

// appendCanonicalNumber writes a JSON number literal as plain decimal text.
// Literals without an exponent are already canonical apart from the sign
// of zero. Otherwise the exponent is folded into the digits and the scale
// becomes max(0, fraction digits - exponent), so "1.50e1" is "15.0" and
// "1e-2" is "0.01". Zero is never negative.
func appendCanonicalNumber(dst []byte, lit string) []byte {
	ePos := strings.IndexAny(lit, "eE")
	if ePos < 0 {
		if abs, neg := strings.CutPrefix(lit, "-"); neg && isZero(abs) {
			return append(dst, abs...)
		}
		return append(dst, lit...)
	}

	mantissa := lit[:ePos]
	exp, err := strconv.Atoi(strings.TrimPrefix(lit[ePos+1:], "+"))
	if err != nil {
		// checkNumber rejects these at parse time.
		return append(dst, lit...)
	}

	neg := strings.HasPrefix(mantissa, "-")
	mantissa = strings.TrimPrefix(mantissa, "-")
	intPart, fracPart, _ := strings.Cut(mantissa, ".")

	digits := intPart + fracPart
	point := len(intPart) + exp

	var b strings.Builder
	switch {
	case point <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -point))
		b.WriteString(digits)
	case point >= len(digits):
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", point-len(digits)))
	default:
		b.WriteString(digits[:point])
		b.WriteByte('.')
		b.WriteString(digits[point:])
	}

	out := trimLeadingZeros(b.String())
	if neg && !isZero(out) {
		dst = append(dst, '-')
	}
	return append(dst, out...)
}

// trimLeadingZeros keeps exactly one digit before the decimal point.
func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' && s[i+1] != '.' {
		i++
	}
	return s[i:]
}

func isZero(s string) bool {
	return strings.Trim(s, "0.") == ""
}
