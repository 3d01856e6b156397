package jsonl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Parser turns one line into a JSON object.
type Parser interface {
	Parse(line []byte) (Document, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(line []byte) (Document, error)

// Parse implements Parser.
func (f ParserFunc) Parse(line []byte) (Document, error) { return f(line) }

// jsonAPI decodes numbers as json.Number so their literal survives, and
// encodes objects with sorted keys so nested values have one canonical form.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// numberRegex is the JSON number grammar (RFC 8259 section 6).
var numberRegex = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// MaxNumberExponent bounds the exponent of numeric literals. Canonical text
// expands exponents into digits, so unbounded exponents would allow tiny
// lines to produce huge strings.
var MaxNumberExponent = 16383

var (
	errEmptyLine     = errors.New("empty line")
	errNotObject     = errors.New("top-level value is not an object")
	errInvalidUTF8   = errors.New("invalid UTF-8")
	errLoneSurrogate = errors.New("unpaired UTF-16 surrogate escape")
)

// IsNumber reports whether lit matches the JSON number grammar.
func IsNumber(lit string) bool {
	return numberRegex.MatchString(lit)
}

// JSONParser is the default Parser. Duplicate keys resolve to the last
// occurrence.
type JSONParser struct{}

// NewParser returns the default parser.
func NewParser() *JSONParser {
	return &JSONParser{}
}

// Parse implements Parser. Errors wrap ErrMalformedJSON.
func (p *JSONParser) Parse(line []byte) (Document, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, errEmptyLine)
	}
	if err := checkEncoding(line); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	var doc any
	if err := jsonAPI.Unmarshal(line, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, errNotObject)
	}

	if err := checkNumbers(obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	return Object(obj), nil
}

// checkNumbers validates every number literal in the tree. The decoder
// accepts loose literals such as "1.2.3"; the JSON grammar does not.
func checkNumbers(node any) error {
	switch v := node.(type) {
	case json.Number:
		return checkNumber(v.String())
	case map[string]any:
		for _, child := range v {
			if err := checkNumbers(child); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range v {
			if err := checkNumbers(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkEncoding rejects what the decoder would silently replace with
// U+FFFD: invalid UTF-8 bytes and \u escapes naming half a surrogate pair.
func checkEncoding(line []byte) error {
	if !utf8.Valid(line) {
		return errInvalidUTF8
	}
	for i := 0; i < len(line); i++ {
		if line[i] != '\\' {
			continue
		}
		if i+1 < len(line) && line[i+1] != 'u' {
			i++
			continue
		}
		r, ok := escapedRune(line, i)
		if !ok || !utf16.IsSurrogate(r) {
			continue
		}
		if r >= 0xDC00 {
			return errLoneSurrogate
		}
		low, ok := escapedRune(line, i+6)
		if !ok || low < 0xDC00 || low > 0xDFFF {
			return errLoneSurrogate
		}
		i += 11
	}
	return nil
}

// escapedRune decodes the \uXXXX escape starting at line[i].
func escapedRune(line []byte, i int) (rune, bool) {
	if i+6 > len(line) || line[i] != '\\' || line[i+1] != 'u' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(line[i+2:i+6]), 16, 16)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

func checkNumber(lit string) error {
	if !IsNumber(lit) {
		return fmt.Errorf("invalid number literal %q", lit)
	}
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		exp, err := strconv.Atoi(strings.TrimPrefix(lit[i+1:], "+"))
		if err != nil || exp > MaxNumberExponent || exp < -MaxNumberExponent {
			return fmt.Errorf("number %q out of range", lit)
		}
	}
	return nil
}
