package server_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/server"
	"github.com/raysh454/securescan/internal/store"
	"github.com/raysh454/securescan/internal/testutil"
)

func newTestServer(t *testing.T, fake *testutil.FakeAnalyzer) *server.Server {
	t.Helper()

	if fake == nil {
		fake = &testutil.FakeAnalyzer{}
	}
	cfg := server.Config{
		ListenAddr: ":0",
		Store:      store.NewMemoryStore(&store.Config{}),
		Analyzer:   fake,
		Logger:     &testutil.DummyLogger{},
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/history", "")

	origin := rec.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "OPTIONS", "/scan", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected Allow-Methods header on OPTIONS")
	}
}

// ─── Scanning ──────────────────────────────────────────────────────────

func TestServer_Scan(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeAnalyzer{
		Results: map[string]*model.AnalysisResult{
			"https://bad.ru": testutil.CannedResult(95, model.LevelMalicious),
		},
	}
	s := newTestServer(t, fake)

	rec := doJSON(t, s, "POST", "/scan", `{"url":"https://bad.ru","userId":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	decodeJSON(t, rec, &resp)
	if resp["risk_score"] != float64(95) {
		t.Errorf("risk_score = %v, want 95", resp["risk_score"])
	}
	if resp["threat_level"] != "Malicious" {
		t.Errorf("threat_level = %v", resp["threat_level"])
	}
	if resp["id"] == float64(0) || resp["id"] == nil {
		t.Errorf("id = %v, want assigned id", resp["id"])
	}
	if _, ok := resp["breakdown"]; !ok {
		t.Error("response missing breakdown")
	}
}

func TestServer_Scan_MissingURL(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/scan", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_Scan_InvalidJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/scan", `{invalid}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_Scan_InvalidURL(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/scan", `{"url":"not a url at all"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_Scan_ProviderFailure(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeAnalyzer{Err: errors.New("upstream exploded")}
	s := newTestServer(t, fake)

	rec := doJSON(t, s, "POST", "/scan", `{"url":"https://example.com"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestServer_GetScan(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	created := doJSON(t, s, "POST", "/scan", `{"url":"https://example.com"}`)
	var resp map[string]any
	decodeJSON(t, created, &resp)

	rec := doJSON(t, s, "GET", "/scans/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, s, "GET", "/scans/999", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown scan, got %d", rec.Code)
	}
}

// ─── History ───────────────────────────────────────────────────────────

func TestServer_History(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeAnalyzer{
		Results: map[string]*model.AnalysisResult{
			"https://bad.ru": testutil.CannedResult(95, model.LevelMalicious),
		},
	}
	s := newTestServer(t, fake)

	doJSON(t, s, "POST", "/scan", `{"url":"https://good.com"}`)
	doJSON(t, s, "POST", "/scan", `{"url":"https://bad.ru","userId":9}`)

	rec := doJSON(t, s, "GET", "/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var all []map[string]any
	decodeJSON(t, rec, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0]["url"] != "https://bad.ru" {
		t.Errorf("expected newest first, got %v", all[0]["url"])
	}
	if all[0]["scan_result"] == nil {
		t.Error("history record missing nested analysis payload")
	}

	// Substring filter over url / threat level, case-insensitive.
	rec = doJSON(t, s, "GET", "/history?q=MALIC", "")
	var filtered []map[string]any
	decodeJSON(t, rec, &filtered)
	if len(filtered) != 1 || filtered[0]["url"] != "https://bad.ru" {
		t.Errorf("filtered history = %v", filtered)
	}

	// userId narrows the page.
	rec = doJSON(t, s, "GET", "/history?userId=9", "")
	var mine []map[string]any
	decodeJSON(t, rec, &mine)
	if len(mine) != 1 || mine[0]["url"] != "https://bad.ru" {
		t.Errorf("user history = %v", mine)
	}
}

// ─── Dashboard ─────────────────────────────────────────────────────────

func TestServer_DashboardStats(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeAnalyzer{
		Results: map[string]*model.AnalysisResult{
			"https://bad.ru":   testutil.CannedResult(95, model.LevelMalicious),
			"https://iffy.net": testutil.CannedResult(55, model.LevelSuspicious),
		},
	}
	s := newTestServer(t, fake)

	doJSON(t, s, "POST", "/scan", `{"url":"https://good.com"}`)
	doJSON(t, s, "POST", "/scan", `{"url":"https://iffy.net"}`)
	doJSON(t, s, "POST", "/scan", `{"url":"https://bad.ru"}`)

	rec := doJSON(t, s, "GET", "/dashboard-stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats map[string]any
	decodeJSON(t, rec, &stats)
	if stats["totalScans"] != float64(3) {
		t.Errorf("totalScans = %v, want 3", stats["totalScans"])
	}
	if stats["maliciousScans"] != float64(1) || stats["suspiciousScans"] != float64(1) || stats["safeScans"] != float64(1) {
		t.Errorf("level counts = %v/%v/%v",
			stats["maliciousScans"], stats["suspiciousScans"], stats["safeScans"])
	}

	trend, ok := stats["trend"].([]any)
	if !ok || len(trend) != 7 {
		t.Errorf("trend = %v, want 7 buckets", stats["trend"])
	}
	top, ok := stats["topRiskDomains"].([]any)
	if !ok || len(top) != 2 {
		t.Fatalf("topRiskDomains = %v, want 2 entries", stats["topRiskDomains"])
	}
	first := top[0].(map[string]any)
	if first["url"] != "https://bad.ru" {
		t.Errorf("top risk = %v, want bad.ru first", first["url"])
	}
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func TestServer_BulkScan(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/scan/bulk", `{"urls":["https://a.com","https://b.com"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var job map[string]any
	decodeJSON(t, rec, &job)
	id, _ := job["id"].(string)
	if id == "" {
		t.Fatal("job response missing id")
	}
	if job["total"] != float64(2) {
		t.Errorf("total = %v, want 2", job["total"])
	}

	got := doJSON(t, s, "GET", "/jobs/"+id, "")
	if got.Code != http.StatusOK {
		t.Errorf("expected 200 for job lookup, got %d", got.Code)
	}
}

func TestServer_BulkScan_MissingURLs(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/scan/bulk", `{"urls":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_ListJobs_Empty(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_GetJob_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/jobs/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CancelJob_NoContent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "DELETE", "/jobs/nonexistent", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

// ─── Alert rules ───────────────────────────────────────────────────────

func TestServer_AlertRules(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/alerts", `{"userId":1,"rule_type":"score_above","threshold":70}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var rule map[string]any
	decodeJSON(t, rec, &rule)
	if rule["id"] == nil || rule["id"] == float64(0) {
		t.Errorf("rule id = %v, want assigned id", rule["id"])
	}

	rec = doJSON(t, s, "GET", "/alerts?userId=1", "")
	var rules []map[string]any
	decodeJSON(t, rec, &rules)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	rec = doJSON(t, s, "DELETE", "/alerts/1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, s, "DELETE", "/alerts/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for deleted rule, got %d", rec.Code)
	}
}

func TestServer_AlertRules_MissingType(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "POST", "/alerts", `{"threshold":70}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ─── Operational ───────────────────────────────────────────────────────

func TestServer_Healthz(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
