package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/config"
	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records requests and plays back canned results.
type fakeService struct {
	pingErr   error
	columns   []core.ColumnInfo
	importErr error
	exportErr error
	exportOut string
	limiter   *core.CopyLimiter
	history   *core.History

	gotImport core.ImportRequest
	gotBody   string
	gotSource string
	gotExport core.ExportRequest
}

func newFakeService() *fakeService {
	return &fakeService{
		limiter: core.NewCopyLimiter(2, 0),
		history: core.NewHistory(10),
	}
}

func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeService) Columns(ctx context.Context, table string, subset ...string) ([]core.ColumnInfo, error) {
	if f.columns == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}
	return f.columns, nil
}

func (f *fakeService) Import(ctx context.Context, req core.ImportRequest) (core.Session, error) {
	f.gotImport = req
	f.gotSource = core.GetSourceFromContext(ctx)
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return core.Session{}, err
	}
	f.gotBody = string(data)
	if f.importErr != nil {
		return core.Session{}, f.importErr
	}
	sess := core.Session{ID: "s-1", Table: req.Table, Status: core.StatusComplete, Rows: int64(strings.Count(f.gotBody, "\n"))}
	f.history.Record(sess)
	return sess, nil
}

func (f *fakeService) Export(ctx context.Context, req core.ExportRequest, w io.Writer) (core.Session, error) {
	f.gotExport = req
	if f.exportErr != nil {
		return core.Session{}, f.exportErr
	}
	_, err := io.WriteString(w, f.exportOut)
	return core.Session{ID: "s-2", Table: req.Table, Status: core.StatusComplete}, err
}

func (f *fakeService) Limiter() *core.CopyLimiter { return f.limiter }
func (f *fakeService) History() *core.History     { return f.history }

func testConfig() *config.Config {
	return &config.Config{
		Copy:     config.CopyConfig{MaxBodySize: 1 << 20},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, svc CopyService, cfg *config.Config) *Server {
	t.Helper()
	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleImport(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig())

	body := "{\"id\":1}\n{\"id\":2}\n"
	req := httptest.NewRequest(http.MethodPost, "/api/import/public.items?columns=id,%20name", strings.NewReader(body))
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "public.items", svc.gotImport.Table)
	assert.Equal(t, []string{"id", "name"}, svc.gotImport.Columns)
	assert.Equal(t, body, svc.gotBody)
	assert.Equal(t, "http", svc.gotSource)

	var sess core.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, int64(2), sess.Rows)
	assert.Equal(t, core.StatusComplete, sess.Status)
}

func TestHandleImport_Compressed(t *testing.T) {
	for _, codec := range []compress.Type{compress.Gzip, compress.Zstd, compress.LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			zw, err := compress.NewWriter(&buf, codec)
			require.NoError(t, err)
			_, err = io.WriteString(zw, "{\"id\":1}\n")
			require.NoError(t, err)
			require.NoError(t, zw.Close())

			svc := newFakeService()
			s := newTestServer(t, svc, testConfig())

			req := httptest.NewRequest(http.MethodPost, "/api/import/items", &buf)
			req.Header.Set("Content-Encoding", codec.ContentEncoding())
			rec := do(s, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "{\"id\":1}\n", svc.gotBody)
		})
	}
}

func TestHandleImport_UnknownEncoding(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import/items", strings.NewReader("{}"))
	req.Header.Set("Content-Encoding", "br")
	rec := do(s, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleImport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "bad line",
			err:    &jsonl.RowError{Kind: jsonl.ErrMalformedJSON, Line: 3},
			status: http.StatusBadRequest,
			code:   "JSONL002",
		},
		{
			name:   "conversion",
			err:    &jsonl.RowError{Kind: jsonl.ErrConversion, Line: 7, Column: "price", Value: "abc"},
			status: http.StatusBadRequest,
			code:   "JSONL003",
		},
		{
			name:   "table missing",
			err:    fmt.Errorf("%w: nope", core.ErrTableNotFound),
			status: http.StatusNotFound,
			code:   "TBL001",
		},
		{
			name:   "busy",
			err:    core.ErrTooManyCopies,
			status: http.StatusServiceUnavailable,
			code:   "CPY002",
		},
		{
			name:   "duplicate key",
			err:    errors.New("copy into items: ERROR: duplicate key value violates unique constraint"),
			status: http.StatusConflict,
			code:   "DB001",
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.importErr = tt.err
			s := newTestServer(t, svc, testConfig())

			rec := do(s, httptest.NewRequest(http.MethodPost, "/api/import/items", strings.NewReader("{}\n")))

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestHandleImport_ReportsLineAndColumn(t *testing.T) {
	svc := newFakeService()
	svc.importErr = &jsonl.RowError{Kind: jsonl.ErrConversion, Line: 7, Column: "price", Value: "abc"}
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/import/items", strings.NewReader("{}\n")))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Line)
	assert.Equal(t, "price", resp.Column)
}

func TestHandleImport_BodyTooLarge(t *testing.T) {
	svc := newFakeService()
	cfg := testConfig()
	cfg.Copy.MaxBodySize = 8
	s := newTestServer(t, svc, cfg)

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/import/items", strings.NewReader(strings.Repeat("{}\n", 10))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "CPY005")
}

func TestHandleExport(t *testing.T) {
	svc := newFakeService()
	svc.exportOut = "{\"id\":1}\n{\"id\":2}\n"
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/export/items?columns=id", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="items-`)
	assert.Equal(t, svc.exportOut, rec.Body.String())
	assert.Equal(t, []string{"id"}, svc.gotExport.Columns)
}

func TestHandleExport_Compressed(t *testing.T) {
	svc := newFakeService()
	svc.exportOut = "{\"id\":1}\n"
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/export/items?compress=zstd", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".jsonl.zst")

	zr, err := compress.NewReader(rec.Body, compress.Zstd)
	require.NoError(t, err)
	defer zr.Close()
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, svc.exportOut, string(out))
}

func TestHandleExport_ErrorBeforeOutput(t *testing.T) {
	svc := newFakeService()
	svc.exportErr = fmt.Errorf("%w: items", core.ErrTableNotFound)
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/export/items?compress=gzip", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestHandleExport_EmptyTable(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/export/items", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))
	assert.Zero(t, rec.Body.Len())
}

func TestHandleExport_UnknownCompression(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig())
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/export/items?compress=brotli", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleColumns(t *testing.T) {
	svc := newFakeService()
	svc.columns = []core.ColumnInfo{{Name: "id", TypeID: 20, TypeName: "int8", NotNull: true, Position: 1}}
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/tables/items/columns", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id"`)
	assert.Contains(t, rec.Body.String(), `"int8"`)
}

func TestHandleColumns_NotFound(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig())
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/tables/nope/columns", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "TBL001")
}

func TestHandleSessions(t *testing.T) {
	svc := newFakeService()
	svc.history.Record(core.Session{ID: "a", Table: "items"})
	svc.history.Record(core.Session{ID: "b", Table: "orders"})
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []core.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].ID)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/sessions/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items"`)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/sessions/zzz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.pingErr = errors.New("connection refused")
	rec = do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestHandleStatus(t *testing.T) {
	svc := newFakeService()
	svc.history.Record(core.Session{ID: "a", Table: "items", Status: core.StatusComplete, Rows: 12})
	s := newTestServer(t, svc, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "items")
	assert.Contains(t, rec.Body.String(), "jsonlines")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, newFakeService(), cfg)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, do(s, req).Code)

	// Pages stay public.
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, CopyLimit: 2}
	s := newTestServer(t, newFakeService(), cfg)

	export := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/export/items", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		return do(s, req).Code
	}

	assert.Equal(t, http.StatusOK, export())
	assert.Equal(t, http.StatusOK, export())

	req := httptest.NewRequest(http.MethodGet, "/api/export/items", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := do(s, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")

	// Other endpoints use the general budget.
	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, http.StatusOK, do(s, req).Code)
}

func TestRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		requests int
		allowed  int
	}{
		{"under limit", 5, 3, 3},
		{"at limit", 3, 3, 3},
		{"over limit", 2, 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := &rateLimiter{visitors: make(map[string]*visitor), rate: tt.rate, window: time.Minute}
			allowed := 0
			for i := 0; i < tt.requests; i++ {
				if rl.allow("10.0.0.1") {
					allowed++
				}
			}
			assert.Equal(t, tt.allowed, allowed)
			assert.True(t, rl.allow("10.0.0.2"), "other clients have their own budget")
		})
	}
}

func TestStatusFor_MaxBytes(t *testing.T) {
	err := fmt.Errorf("read body: %w", &http.MaxBytesError{Limit: 10})
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(err))
}
