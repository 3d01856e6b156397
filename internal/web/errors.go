package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// mapped through core.MapError so clients only see a message, an action and
// a support code. API routes answer in JSON; pages get an HTML fragment.

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/JonMunkholm/jsonlcopy/internal/web/templates"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Line    int64  `json:"line,omitempty"`
	Column  string `json:"column,omitempty"`
}

// statusFor picks the HTTP status for a copy error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyCopies):
		return http.StatusServiceUnavailable
	case errors.Is(err, compress.ErrUnknownType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrColumnNotFound),
		errors.Is(err, core.ErrInvalidTableName),
		errors.Is(err, core.ErrUnknownFormat),
		errors.Is(err, core.ErrUnsupportedType),
		errors.Is(err, jsonl.ErrMalformedLine),
		errors.Is(err, jsonl.ErrMalformedJSON),
		errors.Is(err, jsonl.ErrConversion),
		errors.Is(err, jsonl.ErrUnsupportedKind):
		return http.StatusBadRequest
	}
	switch core.MapError(err).Code {
	case "DB001", "DB002", "DB003":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing form with statusFor.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondUserError(w, r, err, statusFor(err))
}

func respondUserError(w http.ResponseWriter, r *http.Request, err error, status int) {
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	// Line and column point at the input, not at server internals.
	var rowErr *jsonl.RowError
	if errors.As(err, &rowErr) {
		resp.Line = rowErr.Line
		resp.Column = rowErr.Column
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
