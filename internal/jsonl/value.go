package jsonl

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindString
	KindNumber
	KindNested // object or array
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single JSON value as seen by the mapper.
type Value struct {
	Kind   Kind
	Bool   bool   // KindBool
	Str    string // KindString contents, or the KindNumber literal
	Nested any    // KindNested: map[string]any or []any
}

// Document is a parsed JSON object.
type Document interface {
	// Member returns the value stored under key. Keys match exactly.
	Member(key string) (Value, bool)
}

// Object is a Document backed by a decoded JSON object whose numbers are
// held as json.Number.
type Object map[string]any

// Member implements Document.
func (o Object) Member(key string) (Value, bool) {
	raw, ok := o[key]
	if !ok {
		return Value{}, false
	}
	return valueOf(raw), true
}

// valueOf tags a decoded JSON node.
func valueOf(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: v}
	case string:
		return Value{Kind: KindString, Str: v}
	case json.Number:
		return Value{Kind: KindNumber, Str: v.String()}
	case map[string]any, []any:
		return Value{Kind: KindNested, Nested: v}
	default:
		return Value{Kind: kindUnknown, Nested: v}
	}
}

// kindUnknown marks nodes the parser should never produce.
const kindUnknown Kind = 0xff
