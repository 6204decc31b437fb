package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/kv/memory"
	"ledger/internal/ledger"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/services"
	"ledger/internal/transfer"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *ledger.Store) {
	t.Helper()
	store := ledger.NewStore(memory.New(), ledger.DefaultKey)
	svc := services.NewLedgerService(store, nil, transfer.Importer{}, nil)

	s, err := NewServer(cfg, svc)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, store
}

func do(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, r)
	return rec
}

func postForm(target string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func recordForm(typ, date, content, amount string) url.Values {
	return url.Values{
		"type":    {typ},
		"date":    {date},
		"content": {content},
		"method":  {"card"},
		"amount":  {amount},
	}
}

func TestIndex_EmptyLedger(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "This month")
	assert.Contains(t, body, "All time")
	assert.Contains(t, body, "No records")
	assert.Contains(t, body, `value="2024-03-20"`)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIndex_UnknownPath(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRecord_FormRedirectsAndRenders(t *testing.T) {
	s, store := newTestServer(t, Config{})

	rec := do(s, postForm("/records", recordForm("utility", "2024-03-15", "water bill", "40")))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?notice=added", rec.Header().Get("Location"))

	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/ui/panel?period=month", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "water bill")
	assert.Contains(t, rec.Body.String(), "-¥40.00")

	rec = do(s, httptest.NewRequest(http.MethodGet, "/?notice=added", nil))
	assert.Contains(t, rec.Body.String(), "Record added.")
}

func TestCreateRecord_JSON(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	body := `{"type":"balance-carry","date":"2024-03-01","content":"salary","method":"bank","amount":1000.5}`
	r := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec := do(s, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "salary", got["content"])
	assert.Equal(t, 1000.5, got["amount"])
	assert.NotZero(t, got["id"])
}

func TestCreateRecord_Invalid(t *testing.T) {
	s, store := newTestServer(t, Config{})

	tests := []struct {
		name   string
		values url.Values
	}{
		{"bad amount", recordForm("food", "2024-03-15", "lunch", "abc")},
		{"bad date", recordForm("food", "2024-13-45", "lunch", "12")},
		{"unknown category", recordForm("gambling", "2024-03-15", "lunch", "12")},
		{"empty content", recordForm("food", "2024-03-15", "  ", "12")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, postForm("/records", tt.values))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), `class="error"`)
		})
	}

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListRecords(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	do(s, postForm("/records", recordForm("food", "2024-03-10", "groceries", "12.5")))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	records, err := transfer.Parse(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "groceries", records[0].Content)
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	do(s, postForm("/records", recordForm("food", "2024-03-10", "groceries", "12.5")))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "accounting_records_")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "[\n  {"))

	rec = do(s, httptest.NewRequest(http.MethodGet, "/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestImport_RawBody(t *testing.T) {
	s, store := newTestServer(t, Config{})
	payload := `[{"id":1,"type":"food","date":"2024-03-02","content":"bread","method":"cash","amount":3,"timestamp":1}]`

	rec := do(s, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(payload)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(`{"not":"a list"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/import?confirm=yes", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported":1}`, rec.Body.String())

	all, err = store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bread", all[0].Content)
}

func TestImport_MultipartUpload(t *testing.T) {
	s, store := newTestServer(t, Config{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "accounting_records_2024-03-01.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`[{"id":7,"type":"transport","date":"2024-03-05","content":"bus","method":"card","amount":2,"timestamp":7}]`))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("confirm", "yes"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/import", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(s, r)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?notice=imported", rec.Header().Get("Location"))

	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(7), all[0].ID)
}

func TestClear(t *testing.T) {
	s, store := newTestServer(t, Config{})
	do(s, postForm("/records", recordForm("food", "2024-03-10", "groceries", "12.5")))

	rec := do(s, postForm("/clear", url.Values{}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	all, _ := store.All(context.Background())
	require.Len(t, all, 1)

	r := postForm("/clear", url.Values{"confirm": {"yes"}})
	r.Header.Set("Accept", "application/json")
	rec = do(s, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestChart(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	do(s, postForm("/records", recordForm("balance-carry", "2024-03-01", "salary", "100")))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/chart.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestHealthAndReadiness(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _ := newTestServer(t, Config{Ready: func(context.Context) error { return errors.New("database is locked") }})
	rec = do(down, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestRateLimitAppliesToPostOnly(t *testing.T) {
	s, _ := newTestServer(t, Config{RateLimit: ratelimit.Config{Limit: 2, Period: time.Hour}})

	for i := 0; i < 2; i++ {
		rec := do(s, postForm("/records", recordForm("food", "2024-03-10", "snack", "1")))
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	rec := do(s, postForm("/records", recordForm("food", "2024-03-10", "snack", "1")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/records", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/.env", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
