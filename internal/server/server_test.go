package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	authservice "github.com/smallbiznis/usagelens/internal/auth/service"
	"github.com/smallbiznis/usagelens/internal/auth/session"
	"github.com/smallbiznis/usagelens/internal/authorization"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/cursorapi"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	"github.com/smallbiznis/usagelens/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIngest struct {
	mu       sync.Mutex
	requests []ingestdomain.Request
	bodies   []string
	result   *ingestdomain.Result
	err      error
}

func (f *fakeIngest) Ingest(_ context.Context, req ingestdomain.Request) (*ingestdomain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(req.Body)
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, string(body))
	return f.result, f.err
}

func (f *fakeIngest) IngestTable(context.Context, ingestdomain.RawTable, ingestdomain.Origin) (*ingestdomain.Result, error) {
	return f.result, f.err
}

type fakeUploads struct {
	uploaddomain.Service
	lastList uploaddomain.ListRequest
}

func (f *fakeUploads) List(_ context.Context, req uploaddomain.ListRequest) (uploaddomain.ListResponse, error) {
	f.lastList = req
	return uploaddomain.ListResponse{Uploads: []uploaddomain.UploadMetadata{{UploadID: "u-1"}}}, nil
}

func (f *fakeUploads) Get(_ context.Context, id string) (*uploaddomain.UploadMetadata, error) {
	if id != "u-1" {
		return nil, uploaddomain.ErrNotFound
	}
	return &uploaddomain.UploadMetadata{UploadID: id}, nil
}

type fakeAnalytics struct {
	analyticsdomain.Service
	summaryErr error
}

func (f *fakeAnalytics) Summary(context.Context, analyticsdomain.RangeRequest) (analyticsdomain.Summary, error) {
	return analyticsdomain.Summary{TotalUsers: 3, ActiveUsers: 2}, f.summaryErr
}

type fakeManagers struct {
	managerdomain.Service
}

func (fakeManagers) Get(_ context.Context, email string) (managerdomain.ManagerRecord, error) {
	return managerdomain.ManagerRecord{}, managerdomain.ErrNotFound
}

type fakeReports struct{}

func (fakeReports) Summary(context.Context, analyticsdomain.RangeRequest) ([]byte, string, error) {
	return []byte("%PDF-1.3 fake"), "usage-summary-2025-05-01-to-2025-05-07.pdf", nil
}

type fakeSyncer struct {
	err error
}

func (f fakeSyncer) Sync(context.Context, cursorapi.SyncRequest) (*ingestdomain.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ingestdomain.Result{UploadID: "u-sync", Status: uploaddomain.StatusSuccess}, nil
}

type fakeAudit struct {
	auditdomain.Service
	mu      sync.Mutex
	actions []string
}

func (f *fakeAudit) AuditLog(_ context.Context, action string, _ string, _ *string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

type testServer struct {
	srv    *Server
	ingest *fakeIngest
	audit  *fakeAudit
}

func newTestServer(t *testing.T, syncer Syncer) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		SessionTTLMinute: 60,
		Admin:            config.AdminConfig{Username: "ops", Password: "secret"},
	}
	log := zap.NewNop()

	enforcer, err := authorization.NewEnforcer(dbtest.New(t))
	require.NoError(t, err)

	audit := &fakeAudit{}
	ingest := &fakeIngest{result: &ingestdomain.Result{UploadID: "u-1", Status: uploaddomain.StatusSuccess, New: 2}}
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin: engine,
		Cfg: cfg,
		Log: log,
		Authsvc: authservice.New(authservice.Params{
			Log:    log,
			Config: cfg,
			Clock:  clock.System(),
			Store:  session.NewMemoryStore(clock.System()),
		}),
		Sessions:     session.NewManager(cfg),
		AuthzSvc:     authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		AuditSvc:     audit,
		IngestSvc:    ingest,
		UploadSvc:    &fakeUploads{},
		ManagerSvc:   fakeManagers{},
		AnalyticsSvc: &fakeAnalytics{},
		Reports:      fakeReports{},
		Syncer:       syncer,
	})
	return &testServer{srv: srv, ingest: ingest, audit: audit}
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ops","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func multipartUpload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestAnonymousCanReadAnalytics(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/summary?start=2025-05-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data analyticsdomain.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.Data.TotalUsers)
}

func TestAnonymousUploadIsUnauthorized(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	rec := ts.do(multipartUpload(t, "/api/uploads", "usage.csv", "Date,Email\n"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.ingest.requests)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ops","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAdminUploadRunsIngest(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})
	cookies := ts.login(t)

	rec := ts.do(multipartUpload(t, "/api/uploads", "../may.csv", "Date,Email\nx,y\n"), cookies...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result ingestdomain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "u-1", result.UploadID)
	assert.Equal(t, 2, result.New)

	require.Len(t, ts.ingest.requests, 1)
	assert.Equal(t, "may.csv", ts.ingest.requests[0].Filename)
	assert.Equal(t, uploaddomain.SourceCSVUpload, ts.ingest.requests[0].Source)
	assert.Equal(t, "Date,Email\nx,y\n", ts.ingest.bodies[0])
	assert.Contains(t, ts.audit.actions, auditdomain.ActionUploadCreate)
}

func TestUploadSchemaErrorListsMissingColumns(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})
	ts.ingest.result = nil
	ts.ingest.err = &ingestdomain.SchemaError{MissingColumns: []string{"Email", "Is Active"}}
	cookies := ts.login(t)

	rec := ts.do(multipartUpload(t, "/api/uploads", "bad.csv", "Date\n2025-05-01\n"), cookies...)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "schema_error", payload.Type)
	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "Email", payload.Errors[0].Field)
	assert.Equal(t, "missing_column", payload.Errors[0].Code)
}

func TestUploadErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"busy", ingestdomain.ErrIngestBusy, http.StatusConflict},
		{"empty", ingestdomain.ErrEmptyFile, http.StatusBadRequest},
		{"no valid rows", &ingestdomain.NoValidRowsError{Invalid: []ingestdomain.InvalidRow{{Line: 2, Reason: "bad date"}}}, http.StatusBadRequest},
		{"commit", &ingestdomain.PersistenceError{UploadID: "u-9", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, fakeSyncer{})
			ts.ingest.result = nil
			ts.ingest.err = tc.err
			cookies := ts.login(t)

			rec := ts.do(multipartUpload(t, "/api/uploads", "f.csv", "a\n"), cookies...)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})
	ts.srv.maxUpload = func() int64 { return 8 }
	cookies := ts.login(t)

	rec := ts.do(multipartUpload(t, "/api/uploads", "big.csv", strings.Repeat("x", 64)), cookies...)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, ts.ingest.requests)
}

func TestListUploadsAcceptsLimitAlias(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})
	uploads := ts.srv.uploadSvc.(*fakeUploads)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/uploads?limit=5&status=partial", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, uploads.lastList.PageSize)
	assert.Equal(t, "partial", uploads.lastList.Status)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/uploads/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryReportDownload(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/reports/summary.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "usage-summary-2025-05-01-to-2025-05-07.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestSyncRequiresAdminAndConfiguredKey(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{err: cursorapi.ErrNotConfigured})

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/admin/sync/cursor", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := ts.login(t)
	rec = ts.do(httptest.NewRequest(http.MethodPost, "/admin/sync/cursor", nil), cookies...)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSyncReturnsIngestResult(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})
	cookies := ts.login(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync/cursor", strings.NewReader(`{"start":"2025-05-01","end":"2025-05-02"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req, cookies...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "u-sync")
}

func TestManagerNotFound(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/managers/nobody@example.com", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeAndLogout(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	cookies := ts.login(t)
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil), cookies...)
	assert.Contains(t, rec.Body.String(), `"username":"ops"`)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), cookies...)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(multipartUpload(t, "/api/uploads", "f.csv", "a\n"), cookies...)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownAPIPathReturnsJSON404(t *testing.T) {
	ts := newTestServer(t, fakeSyncer{})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
