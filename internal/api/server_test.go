package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso8583_parser/internal/enrichment"
	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/spec"
	"iso8583_parser/internal/storage"
)

const networkMessage = "0800" + "8220000000000000" + "0400000000000000" + "1015123045" + "000123" + "0301"

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) http.Handler {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewServer(registry.New(), cfg, opts...).Router()
}

func newTestArchive(t *testing.T) *storage.SQLiteDB {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealthEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, Config{Port: 8081}), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(1), resp["profiles"])
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestServer(t, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})

	tests := []struct {
		name       string
		path       string
		header     string
		value      string
		wantStatus int
	}{
		{name: "no key", path: "/profiles", wantStatus: http.StatusUnauthorized},
		{name: "health is open", path: "/health", wantStatus: http.StatusOK},
		{name: "invalid key", path: "/profiles", header: "X-API-Key", value: "wrong", wantStatus: http.StatusForbidden},
		{name: "x-api-key", path: "/profiles", header: "X-API-Key", value: "test-key-123", wantStatus: http.StatusOK},
		{name: "bearer", path: "/profiles", header: "Authorization", value: "Bearer another-key", wantStatus: http.StatusOK},
		{name: "query param", path: "/profiles?api_key=test-key-123", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandler_MountsAndCORS(t *testing.T) {
	h := NewServer(registry.New(), Config{}, WithLogger(quietLogger())).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/api/v1/decode", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDecode(t *testing.T) {
	router := newTestServer(t, Config{})

	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		wantSuccess bool
		wantFields  []int
	}{
		{name: "raw hex", path: "/decode", body: networkMessage, wantStatus: http.StatusOK, wantSuccess: true, wantFields: []int{7, 11, 70}},
		{name: "raw hex with spacing", path: "/decode", body: "0800 8220000000000000\n0400000000000000 1015123045 000123 0301", wantStatus: http.StatusOK, wantSuccess: true, wantFields: []int{7, 11, 70}},
		{name: "json", path: "/decode", body: `{"hex":"` + networkMessage + `","profile":"iso8583-1987"}`, wantStatus: http.StatusOK, wantSuccess: true, wantFields: []int{7, 11, 70}},
		{name: "unsuccessful is still 200", path: "/decode", body: "0100" + "4000000000000000" + "161", wantStatus: http.StatusOK, wantFields: []int{}},
		{name: "fatal input is still 200", path: "/decode", body: "08", wantStatus: http.StatusOK, wantFields: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			var res iso8583.ParseResult
			decodeBody(t, rec, &res)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantFields, res.FieldNumbers())
		})
	}
}

func TestDecode_BadRequests(t *testing.T) {
	router := newTestServer(t, Config{})

	rec := do(t, router, http.MethodPost, "/decode?profile=acme", networkMessage)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/decode", `{"hex":"0800","profile":"acme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/decode", `{"hex":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/decode", strings.Repeat("0", maxBodyBytes+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport(t *testing.T) {
	router := newTestServer(t, Config{})

	rec := do(t, router, http.MethodPost, "/report", networkMessage+"AB")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	body := rec.Body.String()
	assert.Contains(t, body, "MTI: 0800 (Network Management Request)\n")
	assert.Contains(t, body, "DE70 Network Management Information Code: 0301\n")
	assert.Contains(t, body, "[unparsed] 2 hex characters left unparsed")
}

func TestReport_Annotations(t *testing.T) {
	cache := enrichment.NewIssuerCache(enrichment.StaticLoader(storage.IssuerRange{Start: "4111", End: "4111", Issuer: "Test Bank"}))
	cache.Acquire()
	defer cache.Release()
	router := newTestServer(t, Config{}, WithIssuers(cache))

	msg, err := iso8583.NewEncoder(spec.ISO1987(), iso8583.CharsetASCII).Encode("0100", map[int]string{2: "4111111111111111", 39: "00"})
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/report", msg)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Annotations:\n")
	assert.Contains(t, body, "DE2 PAN: 411111******1111\n")
	assert.Contains(t, body, "DE2 Issuer: Test Bank\n")
	assert.Contains(t, body, "DE39 Response: 00 Approved\n")
}

func TestArchiveEndpoints_NotConfigured(t *testing.T) {
	router := newTestServer(t, Config{})

	for _, path := range []string{"/messages", "/messages/1", "/stats", "/analytics/messages", "/analytics/stats", "/issuers/411111"} {
		rec := do(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestDecode_Archives(t *testing.T) {
	db := newTestArchive(t)
	router := newTestServer(t, Config{ArchiveDecodes: true}, WithArchive(db))

	rec := do(t, router, http.MethodPost, "/decode", `{"hex":"`+networkMessage+`","source":"switch-a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Record-ID")
	require.NotEmpty(t, id)

	rec = do(t, router, http.MethodPost, "/decode", "0100"+"4000000000000000"+"161")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/messages/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msg MessageResponse
	decodeBody(t, rec, &msg)
	assert.Equal(t, "0800", msg.MTI)
	assert.Equal(t, "switch-a", msg.Source)
	assert.Equal(t, "iso8583-1987", msg.Profile)
	assert.Empty(t, msg.ResultJSON)
	require.NotNil(t, msg.Result)
	assert.Equal(t, []int{7, 11, 70}, msg.Result.FieldNumbers())

	rec = do(t, router, http.MethodGet, "/messages?success=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Messages []storage.Record `json:"messages"`
		Count    int              `json:"count"`
	}
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "0100", list.Messages[0].MTI)
	assert.Equal(t, "api", list.Messages[0].Source)
	assert.Equal(t, "iso8583-1987", list.Messages[0].Profile)
	assert.Empty(t, list.Messages[0].ResultJSON)

	rec = do(t, router, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats storage.Stats
	decodeBody(t, rec, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
}

func TestDecode_ArchiveDisabled(t *testing.T) {
	db := newTestArchive(t)
	router := newTestServer(t, Config{}, WithArchive(db))

	rec := do(t, router, http.MethodPost, "/decode", networkMessage)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Record-ID"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestMessages_BadRequests(t *testing.T) {
	router := newTestServer(t, Config{}, WithArchive(newTestArchive(t)))

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/messages?success=maybe", http.StatusBadRequest},
		{"/messages?limit=0", http.StatusBadRequest},
		{"/messages?limit=1001", http.StatusBadRequest},
		{"/messages?offset=-1", http.StatusBadRequest},
		{"/messages?limit=10&offset=0&order=asc", http.StatusOK},
		{"/messages/abc", http.StatusBadRequest},
		{"/messages/999", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestIssuerEndpoint(t *testing.T) {
	cache := enrichment.NewIssuerCache(enrichment.StaticLoader(
		storage.IssuerRange{Start: "411111", End: "411111", Scheme: "VISA", Issuer: "Test Bank", Country: "US"},
	))
	cache.Acquire()
	defer cache.Release()
	router := newTestServer(t, Config{}, WithIssuers(cache))

	rec := do(t, router, http.MethodGet, "/issuers/4111111111111111", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp IssuerResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "411111******1111", resp.MaskedPAN)
	assert.True(t, resp.LuhnValid)
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Issuer)
	assert.Equal(t, "Test Bank", resp.Issuer.Issuer)

	rec = do(t, router, http.MethodGet, "/issuers/5500000000000004", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = IssuerResponse{}
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Found)
	assert.Nil(t, resp.Issuer)

	for _, pan := range []string{"41111", "41111a1111", strings.Repeat("4", 20)} {
		rec = do(t, router, http.MethodGet, "/issuers/"+pan, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, pan)
	}
}

func TestProfilesEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, Config{}), http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, []string{"iso8583-1987"}, resp["profiles"])
}

type fakeAnalytics struct {
	params  storage.CHQueryParams
	records []storage.Record
	stats   *storage.CHStats
	err     error
}

func (f *fakeAnalytics) Query(_ context.Context, p storage.CHQueryParams) ([]storage.Record, error) {
	f.params = p
	return f.records, f.err
}

func (f *fakeAnalytics) GetStats(context.Context) (*storage.CHStats, error) {
	return f.stats, f.err
}

func TestAnalyticsMessages(t *testing.T) {
	ch := &fakeAnalytics{records: []storage.Record{{MTI: "0200", Source: "nats", Profile: "iso8583-1987", ResultJSON: `{"success":true}`}}}
	router := newTestServer(t, Config{}, WithAnalytics(ch))

	rec := do(t, router, http.MethodGet, "/analytics/messages?mti=0200&source=nats&success=true&since=2026-03-14T00:00:00Z&limit=5&offset=10&order=asc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	ok := true
	assert.Equal(t, storage.CHQueryParams{
		MTI:     "0200",
		Source:  "nats",
		Success: &ok,
		Since:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Limit:   5,
		Offset:  10,
	}, ch.params)

	var list struct {
		Messages []storage.Record `json:"messages"`
		Count    int              `json:"count"`
	}
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "0200", list.Messages[0].MTI)
	assert.Empty(t, list.Messages[0].ResultJSON)
}

func TestAnalyticsMessages_Errors(t *testing.T) {
	tests := []struct {
		name       string
		ch         *fakeAnalytics
		path       string
		wantStatus int
	}{
		{name: "bad since", ch: &fakeAnalytics{}, path: "/analytics/messages?since=yesterday", wantStatus: http.StatusBadRequest},
		{name: "bad limit", ch: &fakeAnalytics{}, path: "/analytics/messages?limit=5000", wantStatus: http.StatusBadRequest},
		{name: "backend down", ch: &fakeAnalytics{err: errors.New("connection refused")}, path: "/analytics/messages", wantStatus: http.StatusInternalServerError},
		{name: "stats backend down", ch: &fakeAnalytics{err: errors.New("connection refused")}, path: "/analytics/stats", wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(t, Config{}, WithAnalytics(tt.ch)), http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAnalyticsStats(t *testing.T) {
	ch := &fakeAnalytics{stats: &storage.CHStats{
		Total:      10,
		Successful: 8,
		ByMTI:      map[string]uint64{"0200": 6, "0800": 4},
	}}
	router := newTestServer(t, Config{}, WithAnalytics(ch))

	rec := do(t, router, http.MethodGet, "/analytics/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats storage.CHStats
	decodeBody(t, rec, &stats)
	assert.Equal(t, uint64(10), stats.Total)
	assert.Equal(t, uint64(8), stats.Successful)
	assert.Equal(t, uint64(6), stats.ByMTI["0200"])
}
