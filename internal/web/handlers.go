package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/JonMunkholm/jsonlcopy/internal/logging"
	"github.com/JonMunkholm/jsonlcopy/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// ndjsonContentType is the media type of export responses.
const ndjsonContentType = "application/x-ndjson"

// statusPageSessions is how many sessions the status page lists.
const statusPageSessions = 25

// handleStatus renders the status page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	params := templates.StatusParams{
		Limiter:  s.service.Limiter().Status(),
		Sessions: s.service.History().Recent(statusPageSessions),
		Formats:  core.Formats(),
		Now:      time.Now(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.StatusPage(params).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render status page", "error", err)
	}
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}

// handleFormats lists the registered copy formats.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"formats": core.Formats()})
}

// handleColumns returns the copyable columns of a table.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.service.Columns(r.Context(), chi.URLParam(r, "table"), core.ParseColumnList(r.URL.Query().Get("columns"))...)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

// handleSessions lists recent sessions, newest first. ?limit= caps the list.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)
	writeJSON(w, http.StatusOK, s.service.History().Recent(limit))
}

// handleSession returns one session by ID.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.service.History().Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "session not found",
			Message: "Session not found",
			Code:    "CPY006",
		})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleImport streams the request body into a table. The body is JSON
// Lines, optionally compressed as named by Content-Encoding. The whole body
// is loaded in one transaction; any bad line rejects it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	codec, err := compress.FromContentEncoding(r.Header.Get("Content-Encoding"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Copy.MaxBodySize)
	body, err := compress.NewReader(r.Body, codec)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("open %s body: %w", codec, err))
		return
	}
	defer body.Close()

	counter := core.NewStreamingCountingReader(body, 0)
	q := r.URL.Query()

	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.Import(ctx, core.ImportRequest{
		Table:   chi.URLParam(r, "table"),
		Columns: core.ParseColumnList(q.Get("columns")),
		Format:  q.Get("format"),
		Body:    counter,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Debug("import body consumed",
		"session_id", sess.ID,
		"wire_bytes", counter.BytesRead,
		"encoding", codec.String(),
	)
	writeJSON(w, http.StatusOK, sess)
}

// handleExport streams a table as JSON Lines. ?compress= selects a codec
// and ?columns= a column subset. Errors found before the first byte get a
// proper error response; later ones can only cut the stream short.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codec, err := compress.ParseType(q.Get("compress"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	table := chi.URLParam(r, "table")
	dw := &deferredWriter{w: w, header: func(h http.Header) {
		h.Set("Content-Type", ndjsonContentType)
		h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(table, codec)))
		if enc := codec.ContentEncoding(); enc != "" {
			h.Set("Content-Encoding", enc)
		}
	}}

	zw, err := compress.NewWriter(dw, codec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.Export(ctx, core.ExportRequest{
		Table:   table,
		Columns: core.ParseColumnList(q.Get("columns")),
		Format:  q.Get("format"),
	}, zw)
	if err != nil {
		if !dw.started {
			s.respondError(w, r, err)
			return
		}
		// Headers are gone; truncating the stream is all that is left.
		logging.FromContext(ctx).Error("export aborted mid-stream",
			"table", table,
			"rows", sess.Rows,
			"error", err,
		)
		return
	}

	if err := zw.Close(); err != nil {
		logging.FromContext(ctx).Error("finish export stream", "table", table, "error", err)
		return
	}
	// An empty, uncompressed table still gets its headers.
	dw.start()
}

// deferredWriter sends headers on the first write, so errors before any
// output can still choose the status code.
type deferredWriter struct {
	w       http.ResponseWriter
	header  func(http.Header)
	started bool
}

func (d *deferredWriter) start() {
	if d.started {
		return
	}
	d.started = true
	d.header(d.w.Header())
	d.w.WriteHeader(http.StatusOK)
}

func (d *deferredWriter) Write(p []byte) (int, error) {
	d.start()
	return d.w.Write(p)
}

// exportFilename builds the download name, e.g. items-20240115T100000Z.jsonl.gz.
func exportFilename(table string, codec compress.Type) string {
	name := strings.NewReplacer("/", "_", `"`, "_", "\\", "_").Replace(table)
	return fmt.Sprintf("%s-%s.jsonl%s", name, time.Now().UTC().Format("20060102T150405Z"), codec.Extension())
}
