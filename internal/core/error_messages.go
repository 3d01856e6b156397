package core

// error_messages.go maps technical errors to user-facing messages with a
// code support staff can look up.
//
// # Copy Format Errors (JSONL001-JSONL099)
//
//	JSONL001 - Malformed line: the input stream failed or a line is too long
//	JSONL002 - Malformed JSON: a line is not a JSON object
//	JSONL003 - Conversion failure: a value does not fit its column type
//	JSONL004 - Unsupported JSON kind
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key (SQLSTATE 23505)
//	DB002 - NOT NULL or CHECK violation (23502, 23514)
//	DB003 - Foreign key violation (23503)
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout (57014, context deadline)
//	DB007 - Deadlock (40P01)
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found
//	TBL002 - Column not found
//
// # Copy Session Errors (CPY001-CPY099)
//
//	CPY001 - Unknown copy format
//	CPY002 - Too many concurrent copies
//	CPY003 - Copy cancelled
//	CPY004 - Unsupported column type
//	CPY005 - Request body too large
//	CPY006 - Session not found (web layer)
//
// # Rate Limiting (RATE001) and Default (ERR000)
//
// Sentinel errors are matched first with errors.Is, then PostgreSQL errors by
// SQLSTATE, then message patterns case-insensitively. The first match wins.
// ERR000 means nothing matched; check the server log for the original error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

var (
	msgMalformedLine = UserMessage{
		Message: "The input could not be read as lines",
		Action:  "Check that the file is complete and no line exceeds the size limit",
		Code:    "JSONL001",
	}
	msgMalformedJSON = UserMessage{
		Message: "A line is not a valid JSON object",
		Action:  "Each line must hold exactly one JSON object; check the line number in the error",
		Code:    "JSONL002",
	}
	msgConversion = UserMessage{
		Message: "A value does not match its column type",
		Action:  "Fix the value named in the error or change the column type",
		Code:    "JSONL003",
	}
	msgUnsupportedKind = UserMessage{
		Message: "A JSON value of an unsupported kind was found",
		Action:  "Please report this with the offending line",
		Code:    "JSONL004",
	}
	msgDuplicate = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Remove duplicate keys from the input or clear the table first",
		Code:    "DB001",
	}
	msgConstraint = UserMessage{
		Message: "A row violates a NOT NULL or CHECK constraint",
		Action:  "Supply a value for every required column",
		Code:    "DB002",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Import parent tables first",
		Code:    "DB003",
	}
	msgConnRefused = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
	msgConnReset = UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Split the input into smaller files or try again later",
		Code:    "DB006",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}
	msgTableNotFound = UserMessage{
		Message: "Table not found",
		Action:  "Verify the table name, including its schema",
		Code:    "TBL001",
	}
	msgColumnNotFound = UserMessage{
		Message: "Column not found",
		Action:  "Check the column list against the table definition",
		Code:    "TBL002",
	}
	msgUnknownFormat = UserMessage{
		Message: "Unknown copy format",
		Action:  "Use jsonlines",
		Code:    "CPY001",
	}
	msgBusy = UserMessage{
		Message: "System is busy with other copies",
		Action:  "Please wait a moment and try again",
		Code:    "CPY002",
	}
	msgCancelled = UserMessage{
		Message: "Copy was cancelled",
		Action:  "Start a new copy when ready",
		Code:    "CPY003",
	}
	msgUnsupportedType = UserMessage{
		Message: "A column has a type that cannot be loaded from JSON Lines",
		Action:  "Exclude the column with a column list",
		Code:    "CPY004",
	}
	msgTooLarge = UserMessage{
		Message: "Request body exceeds the size limit",
		Action:  "Split the input or use the drop directory",
		Code:    "CPY005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// errorKinds are checked in order with errors.Is.
var errorKinds = []struct {
	err error
	msg UserMessage
}{
	{jsonl.ErrMalformedLine, msgMalformedLine},
	{jsonl.ErrMalformedJSON, msgMalformedJSON},
	{jsonl.ErrConversion, msgConversion},
	{jsonl.ErrUnsupportedKind, msgUnsupportedKind},
	{ErrTableNotFound, msgTableNotFound},
	{ErrColumnNotFound, msgColumnNotFound},
	{ErrUnknownFormat, msgUnknownFormat},
	{ErrUnsupportedType, msgUnsupportedType},
	{ErrTooManyCopies, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// sqlStates maps PostgreSQL error codes. Class 22 (data exception) is
// handled separately.
var sqlStates = map[string]UserMessage{
	"23505": msgDuplicate,
	"23502": msgConstraint,
	"23514": msgConstraint,
	"23503": msgForeignKey,
	"57014": msgTimeout,
	"40P01": msgDeadlock,
	"42P01": msgTableNotFound,
	"42703": msgColumnNotFound,
}

// errorPatterns are matched case-insensitively with strings.Contains.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", msgDuplicate},
	{"violates foreign key", msgForeignKey},
	{"connection refused", msgConnRefused},
	{"connection reset", msgConnReset},
	{"timeout", msgTimeout},
	{"deadlock", msgDeadlock},
	{"request body too large", msgTooLarge},
	{"rate limit", msgRateLimited},
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.msg
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStates[pgErr.Code]; ok {
			return msg
		}
		if strings.HasPrefix(pgErr.Code, "22") {
			return msgConversion
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
