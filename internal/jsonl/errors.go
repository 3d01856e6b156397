package jsonl

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds raised by the copy format. All of them abort the copy.
var (
	// ErrMalformedLine is returned when the byte source fails while a line
	// is being assembled, or a line exceeds the configured maximum size.
	ErrMalformedLine = errors.New("malformed line")

	// ErrMalformedJSON is returned when a line is not valid JSON or its
	// top-level value is not an object.
	ErrMalformedJSON = errors.New("malformed json")

	// ErrConversion is returned when a column's input converter rejects
	// the text form of a field.
	ErrConversion = errors.New("conversion failure")

	// ErrUnsupportedKind is returned when a JSON value of an unknown kind
	// reaches text conversion.
	ErrUnsupportedKind = errors.New("unsupported json kind")
)

// RowError describes a failure while processing one input line.
// It matches its Kind sentinel and its cause with errors.Is.
type RowError struct {
	Kind   error  // one of the Err* sentinels
	Line   int64  // 1-based line number, 0 if unknown
	Column string // column name, empty if the failure is not column-specific
	Value  string // offending text, for conversion failures
	Err    error  // underlying cause
}

// Error implements the error interface.
func (e *RowError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q: ", e.Column)
	}
	if e.Kind == ErrConversion {
		fmt.Fprintf(&b, "cannot convert value %q: ", e.Value)
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *RowError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
