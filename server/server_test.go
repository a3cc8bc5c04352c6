package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docintake "github.com/Skryldev/doc-intake"
	"github.com/Skryldev/doc-intake/config"
	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/intake"
	"github.com/Skryldev/doc-intake/login"
	"github.com/Skryldev/doc-intake/records"
)

const secret = "s3cret"

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeSubmitter struct {
	calls   int
	got     intake.Request
	content []byte
	err     error
}

func (f *fakeSubmitter) Submit(_ context.Context, req intake.Request) (*intake.Result, error) {
	f.calls++
	f.got = req
	if req.File != nil {
		r, err := req.File.Open()
		if err != nil {
			return nil, err
		}
		f.content, _ = io.ReadAll(r)
		defer req.File.Remove()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &intake.Result{Link: "https://drive.example/file/1"}, nil
}

// countingTable wraps a MemoryTable and counts store calls.
type countingTable struct {
	*records.MemoryTable
	calls int
}

func (c *countingTable) Rows(ctx context.Context) ([][]string, error) {
	c.calls++
	return c.MemoryTable.Rows(ctx)
}

func (c *countingTable) BatchWrite(ctx context.Context, w []records.RangeWrite) error {
	c.calls++
	return c.MemoryTable.BatchWrite(ctx, w)
}

type fakeLogin struct {
	profile *login.Profile
	err     error
}

func (f fakeLogin) Exchange(context.Context, string) (*login.Profile, error) {
	return f.profile, f.err
}

type memStore struct{ puts int }

func (m *memStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (core.Object, error) {
	m.puts++
	if _, err := io.Copy(io.Discard, r); err != nil {
		return core.Object{}, err
	}
	return core.Object{ID: name, Link: "https://drive.example/" + url.PathEscape(name)}, nil
}

// ── harness ───────────────────────────────────────────────────────────────────

type testServer struct {
	handler http.Handler
	sub     *fakeSubmitter
	table   *countingTable
	repo    *records.Repository
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, mutate func(*config.Config, *Deps)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.APISecret = secret
	cfg.TempDir = t.TempDir()

	ts := &testServer{
		sub:   &fakeSubmitter{},
		table: &countingTable{MemoryTable: records.NewMemoryTable()},
		reg:   prometheus.NewRegistry(),
	}
	ts.repo = records.NewRepository(ts.table)
	d := Deps{
		Intake:   ts.sub,
		Records:  ts.repo,
		Login:    fakeLogin{profile: &login.Profile{UserID: "U1", DisplayName: "Chen"}},
		Metrics:  NewMetrics(ts.reg),
		Gatherer: ts.reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg, &d)
	}
	ts.handler = Router(cfg, d)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

type field struct{ name, value string }

func multipartBody(t *testing.T, file []byte, mime string, fields ...field) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.name, f.value))
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="id.png"`)
		h.Set("Content-Type", mime)
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, key string, file []byte, mime string, fields ...field) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, file, mime, fields...)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: 90, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var chen = []field{{"name", "Chen"}, {"phone", "0912000000"}, {"groupId", "G1"}}

// ── intake ────────────────────────────────────────────────────────────────────

func TestUploadSuccess(t *testing.T) {
	ts := newTestServer(t, nil)
	fields := append(chen, field{"lineUserId", "U9"})
	w := ts.do(uploadRequest(t, secret, []byte("png-bytes"), "image/png", fields...))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://drive.example/file/1", body["driveLink"])

	require.Equal(t, 1, ts.sub.calls)
	assert.Equal(t, "Chen", ts.sub.got.Name)
	assert.Equal(t, "0912000000", ts.sub.got.Phone)
	assert.Equal(t, "G1", ts.sub.got.GroupID)
	assert.Equal(t, "U9", ts.sub.got.ExternalUserID)
	assert.Equal(t, "image/png", ts.sub.got.File.MimeType)
	assert.Equal(t, "png-bytes", string(ts.sub.content))
}

func TestUploadRequiresAPIKey(t *testing.T) {
	for _, key := range []string{"", "wrong", secret + "x"} {
		ts := newTestServer(t, nil)
		w := ts.do(uploadRequest(t, key, []byte("png"), "image/png", chen...))

		assert.Equal(t, http.StatusForbidden, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, apperrors.KindAuth, body["errorKind"])
		assert.Zero(t, ts.sub.calls)
	}
}

func TestUploadWrongMethod(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	req.Header.Set(APIKeyHeader, secret)
	w := ts.do(req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, apperrors.KindMethod, decode(t, w)["errorKind"])
}

func TestUploadNotMultipart(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, secret)
	w := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.KindValidation, decode(t, w)["errorKind"])
	assert.Zero(t, ts.sub.calls)
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config, _ *Deps) { c.MaxUploadBytes = 16 })
	w := ts.do(uploadRequest(t, secret, bytes.Repeat([]byte{1}, 17), "image/png", chen...))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.KindValidation, decode(t, w)["errorKind"])
	assert.Zero(t, ts.sub.calls)
}

func TestUploadStorageFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sub.err = apperrors.Wrap(apperrors.CategoryStorage, "drive.put", errors.New("quota"))
	w := ts.do(uploadRequest(t, secret, []byte("png"), "image/png", chen...))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperrors.KindStorage, body["errorKind"])
	assert.Equal(t, "file upload failed", body["error"])
}

func TestUploadEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.APISecret = secret
	cfg.TempDir = t.TempDir()
	tr, err := docintake.NewTransformer(cfg)
	require.NoError(t, err)

	repo := records.NewRepository(records.NewMemoryTable())
	store := &memStore{}
	svc, err := intake.NewService(cfg, tr, store, repo, nil)
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	h := Router(cfg, Deps{Intake: svc, Records: repo, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ts := &testServer{handler: h}

	w := ts.do(uploadRequest(t, secret, pngBytes(t, 1000, 1500), "image/png", chen...))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	link, _ := decode(t, w)["driveLink"].(string)
	require.NotEmpty(t, link)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/list", nil)
	req.Header.Set(APIKeyHeader, secret)
	w = ts.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Success bool                 `json:"success"`
		Data    []records.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, records.StatusPending, list.Data[0].Status)
	assert.Equal(t, link, list.Data[0].FileLink)

	// A PDF never reaches storage.
	w = ts.do(uploadRequest(t, secret, []byte("%PDF-1.7"), "application/pdf", chen...))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, store.puts)
}

// ── admin ─────────────────────────────────────────────────────────────────────

func seed(t *testing.T, repo *records.Repository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Append(context.Background(), records.Submission{
			RecordID: string(rune('a' + i)),
			Name:     "user",
			GroupID:  "G1",
			FileLink: "https://drive.example/x",
			Status:   records.StatusPending,
		}))
	}
}

func adminRequest(method, path, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestAdminListAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(adminRequest(http.MethodGet, "/api/admin/list", "nope", ""))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, ts.table.calls)
}

func TestAdminListAndUpdate(t *testing.T) {
	ts := newTestServer(t, nil)
	seed(t, ts.repo, 1)

	w := ts.do(adminRequest(http.MethodGet, "/api/admin/list", secret, ""))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.Equal(t, float64(0), first["id"])
	assert.Equal(t, "pending", first["status"])

	w = ts.do(adminRequest(http.MethodPost, "/api/admin/update", secret,
		`{"ids":[0],"purpose":"Visa","applyDate":"2026-01-01"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Updated successfully", decode(t, w)["message"])

	subs, err := ts.repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.StatusProcessed, subs[0].Status)
	assert.Equal(t, "Visa", subs[0].Purpose)
	assert.Equal(t, "2026-01-01", subs[0].ApplyDate)
}

func TestAdminUpdateEmptyIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, body := range []string{`{"ids":[],"purpose":"Visa"}`, `{"purpose":"Visa"}`} {
		w := ts.do(adminRequest(http.MethodPost, "/api/admin/update", secret, body))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.KindValidation, decode(t, w)["errorKind"])
	}
	assert.Zero(t, ts.table.calls)
}

func TestAdminUpdateBadJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(adminRequest(http.MethodPost, "/api/admin/update", secret, `{"ids":[1.5]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, ts.table.calls)
}

func TestAdminUpdateOutOfRangeIsRepositoryError(t *testing.T) {
	ts := newTestServer(t, nil)
	seed(t, ts.repo, 1)
	w := ts.do(adminRequest(http.MethodPost, "/api/admin/update", secret, `{"ids":[7],"purpose":"Visa"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.KindRepository, decode(t, w)["errorKind"])
}

func TestAdminUpdateWrongMethod(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(adminRequest(http.MethodGet, "/api/admin/update", secret, ""))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAdminUpdateRecordIDs(t *testing.T) {
	t.Run("positional mode rejects", func(t *testing.T) {
		ts := newTestServer(t, nil)
		seed(t, ts.repo, 2)
		w := ts.do(adminRequest(http.MethodPost, "/api/admin/update", secret, `{"recordIds":["b"],"purpose":"Visa"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("stable mode", func(t *testing.T) {
		ts := newTestServer(t, func(c *config.Config, _ *Deps) { c.IDMode = config.IDStable })
		seed(t, ts.repo, 2)
		w := ts.do(adminRequest(http.MethodPost, "/api/admin/update", secret, `{"recordIds":["b"],"purpose":"Visa"}`))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		subs, err := ts.repo.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, records.StatusPending, subs[0].Status)
		assert.Equal(t, records.StatusProcessed, subs[1].Status)
	})
}

// ── login, health, metrics ────────────────────────────────────────────────────

func TestLineCallback(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/line-callback?code=abc", nil))
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "U1", loc.Query().Get("externalUserId"))
	assert.Equal(t, "Chen", loc.Query().Get("displayName"))
}

func TestLineCallbackErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/line-callback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for err, reason := range map[error]string{
		login.ErrTokenExchange: "line_auth_failed",
		login.ErrProfile:       "profile_failed",
		errors.New("dial tcp"): "line_error",
	} {
		ts := newTestServer(t, func(_ *config.Config, d *Deps) { d.Login = fakeLogin{err: err} })
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/line-callback?code=abc", nil))
		require.Equal(t, http.StatusFound, w.Code)
		loc, perr := url.Parse(w.Header().Get("Location"))
		require.NoError(t, perr)
		assert.Equal(t, reason, loc.Query().Get("error"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	ts.do(uploadRequest(t, secret, []byte("png"), "image/png", chen...))
	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `docintake_submissions_total{outcome="ok"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
