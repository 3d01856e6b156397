// Package core runs JSON Lines copies against PostgreSQL.
//
// It hosts the copy format from package jsonl: the catalog supplies column
// descriptors, the connection's pgtype.Map supplies input conversion, and
// pgx's COPY protocol moves the rows. Nothing here depends on HTTP, so the
// web server, the CLI, the drop-directory watcher and the export scheduler
// all share it.
//
// # Import
//
//  1. A limiter slot is taken ([CopyLimiter]).
//  2. A transaction begins and [LoadColumns] reads the target columns.
//  3. [CopyIn] runs the format's CopyFrom routine as a pgx.CopyFromSource.
//  4. The transaction commits. Any error rolls everything back.
//
// # Export
//
// [CopyOut] drains a query through the CopyTo routine. Keys follow column
// order and values keep their JSON types ([ColumnEncoder]). Each export
// reports row and byte counts and an xxhash64 checksum of its output.
//
// # Formats
//
// Formats are registered by name with [RegisterFormat]; "jsonlines" and its
// alias "jsonl" are registered at init.
//
// # Error Handling
//
// [MapError] turns errors into [UserMessage] values with support codes
// (JSONL, DB, TBL, CPY, RATE, ERR000).
package core
