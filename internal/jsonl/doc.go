// Package jsonl implements the JSON Lines copy format: one JSON object per
// line on ingest, one JSON object per row on egress.
//
// The package has no database or transport dependencies. The surrounding copy
// engine supplies the byte stream, the column descriptors, the per-column
// input converters and the row encoder; this package owns line framing, JSON
// parsing, field-to-column mapping and value-to-text conversion.
//
// # Ingest
//
// A [LineReader] splits the source on '\n'. Each line is parsed by a [Parser]
// into a [Document] that must be a JSON object. For every target column, in
// table order, the [Mapper] looks up the member with the same (case-sensitive)
// name:
//
//   - absent or JSON null: the column is null and no conversion runs
//   - boolean: "true" or "false"
//   - string: the decoded contents
//   - number: canonical decimal text ("1.5e2" becomes "150")
//   - object or array: compact JSON with sorted keys
//
// The text is then handed to the column's [InputConverter]. Members with no
// matching column are ignored.
//
// # Egress
//
// A [Serializer] asks a [RowEncoder] for the JSON object of a whole row,
// appends it and a '\n' to a [Sink], and marks a record boundary.
//
// # Handlers
//
// [Handler] returns the dispatch table for a copy direction: a
// [CopyFromRoutine] or a [CopyToRoutine]. Both are stateless; per-session
// state lives in [Mapper] and [Serializer].
//
// # Errors
//
// Every failure is fatal to the copy and is reported as one of
// [ErrMalformedLine], [ErrMalformedJSON], [ErrConversion] or
// [ErrUnsupportedKind], usually wrapped in a [*RowError] carrying the line
// number and column.
package jsonl
