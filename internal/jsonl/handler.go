package jsonl

import "fmt"

// Direction selects the copy direction.
type Direction int

const (
	DirectionFrom Direction = iota // ingest: JSON Lines into rows
	DirectionTo                    // egress: rows into JSON Lines
)

// String returns "from" or "to".
func (d Direction) String() string {
	if d == DirectionFrom {
		return "from"
	}
	return "to"
}

// Routine is a dispatch table for one direction. It is either a
// CopyFromRoutine or a CopyToRoutine.
type Routine interface {
	Direction() Direction
}

// CopyFromRoutine is the ingest lifecycle: InFunc once per column, Start
// once, OneRow until it reports false, End once.
type CopyFromRoutine interface {
	Routine
	InFunc(catalog TypeCatalog, col *Column) error
	Start(m *Mapper)
	OneRow(m *Mapper, values []any, nulls []bool) (bool, error)
	End(m *Mapper)
}

// CopyToRoutine is the egress lifecycle: OutFunc once per column, Start
// once, OneRow per row, End once.
type CopyToRoutine interface {
	Routine
	OutFunc(col *Column) error
	Start(s *Serializer)
	OneRow(s *Serializer, row any) error
	End(s *Serializer)
}

// Handler returns the JSON Lines dispatch table for dir.
func Handler(dir Direction) Routine {
	if dir == DirectionFrom {
		return fromRoutine{}
	}
	return toRoutine{}
}

type fromRoutine struct{}

var _ CopyFromRoutine = fromRoutine{}

func (fromRoutine) Direction() Direction { return DirectionFrom }

// InFunc looks up the column's input converter in the catalog.
func (fromRoutine) InFunc(catalog TypeCatalog, col *Column) error {
	in, ioParam, err := catalog.InputFunc(col.TypeID)
	if err != nil {
		return fmt.Errorf("input function for column %q (type %d): %w", col.Name, col.TypeID, err)
	}
	col.Input = in
	col.IOParam = ioParam
	return nil
}

func (fromRoutine) Start(m *Mapper) { m.Start() }

func (fromRoutine) OneRow(m *Mapper, values []any, nulls []bool) (bool, error) {
	return m.ParseRow(values, nulls)
}

func (fromRoutine) End(*Mapper) {}

type toRoutine struct{}

var _ CopyToRoutine = toRoutine{}

func (toRoutine) Direction() Direction { return DirectionTo }

// OutFunc is a no-op: the row encoder converts whole rows.
func (toRoutine) OutFunc(*Column) error { return nil }

func (toRoutine) Start(*Serializer) {}

func (toRoutine) OneRow(s *Serializer, row any) error { return s.WriteRow(row) }

func (toRoutine) End(*Serializer) {}
