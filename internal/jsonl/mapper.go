package jsonl

import (
	"errors"
	"fmt"
	"io"
)

// InputConverter turns the text form of a field into a column's typed value.
type InputConverter interface {
	Convert(text string, ioParam uint32, typeMod int32) (any, error)
}

// InputConverterFunc adapts a function to the InputConverter interface.
type InputConverterFunc func(text string, ioParam uint32, typeMod int32) (any, error)

// Convert implements InputConverter.
func (f InputConverterFunc) Convert(text string, ioParam uint32, typeMod int32) (any, error) {
	return f(text, ioParam, typeMod)
}

// TypeCatalog resolves a type identifier to its input converter and the
// type-specific argument passed to it.
type TypeCatalog interface {
	InputFunc(typeID uint32) (InputConverter, uint32, error)
}

// Column describes one destination column. Name, TypeID and TypeMod come from
// the schema; Input and IOParam are filled by CopyFromRoutine.InFunc.
type Column struct {
	Name    string
	TypeID  uint32
	TypeMod int32
	IOParam uint32
	Input   InputConverter
}

// Mapper holds the ingest state of one copy session: the line reader, the
// parser, the target columns and the reusable text buffer.
type Mapper struct {
	src     io.Reader
	parser  Parser
	columns []Column
	opts    []LineReaderOption

	lines *LineReader
	text  []byte
}

// NewMapper returns a Mapper for src. A nil parser selects NewParser.
// Call Start (or CopyFromRoutine.Start) before ParseRow.
func NewMapper(src io.Reader, columns []Column, parser Parser, opts ...LineReaderOption) *Mapper {
	if parser == nil {
		parser = NewParser()
	}
	return &Mapper{
		src:     src,
		parser:  parser,
		columns: columns,
		opts:    opts,
	}
}

// Columns returns the target columns in table order.
func (m *Mapper) Columns() []Column {
	return m.columns
}

// Start arms the line reader.
func (m *Mapper) Start() {
	m.lines = NewLineReader(m.src, m.opts...)
	m.text = m.text[:0]
}

// ParseRow reads one line and fills values and nulls, which must both have
// one slot per column. It returns false at end of stream.
func (m *Mapper) ParseRow(values []any, nulls []bool) (bool, error) {
	if m.lines == nil {
		m.Start()
	}
	if len(values) < len(m.columns) || len(nulls) < len(m.columns) {
		return false, fmt.Errorf("row buffers hold %d/%d slots, need %d",
			len(values), len(nulls), len(m.columns))
	}

	line, err := m.lines.Next()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lineNo := m.lines.LineNumber()

	doc, err := m.parser.Parse(line)
	if err != nil {
		return false, &RowError{Kind: ErrMalformedJSON, Line: lineNo, Err: unwrapKind(err, ErrMalformedJSON)}
	}

	for i, col := range m.columns {
		v, ok := doc.Member(col.Name)
		if !ok || v.Kind == KindNull {
			values[i] = nil
			nulls[i] = true
			continue
		}

		m.text, err = AppendText(m.text[:0], v)
		if err != nil {
			return false, &RowError{Kind: ErrUnsupportedKind, Line: lineNo, Column: col.Name, Err: unwrapKind(err, ErrUnsupportedKind)}
		}

		if col.Input == nil {
			return false, &RowError{Kind: ErrConversion, Line: lineNo, Column: col.Name, Value: string(m.text),
				Err: errors.New("no input converter")}
		}

		text := string(m.text)
		typed, err := col.Input.Convert(text, col.IOParam, col.TypeMod)
		if err != nil {
			return false, &RowError{Kind: ErrConversion, Line: lineNo, Column: col.Name, Value: text, Err: err}
		}
		values[i] = typed
		nulls[i] = false
	}

	return true, nil
}

// BytesProcessed returns the number of source bytes consumed so far.
func (m *Mapper) BytesProcessed() int64 {
	if m.lines == nil {
		return 0
	}
	return m.lines.BytesProcessed()
}

// unwrapKind strips a leading kind sentinel from err so RowError does not
// report it twice. Errors not built as "%w: %w" around kind are returned
// unchanged.
func unwrapKind(err, kind error) error {
	type multi interface{ Unwrap() []error }
	if m, ok := err.(multi); ok {
		errs := m.Unwrap()
		if len(errs) == 2 && errs[0] == kind {
			return errs[1]
		}
	}
	return err
}
