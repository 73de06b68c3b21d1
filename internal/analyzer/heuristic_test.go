package analyzer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raysh454/securescan/internal/analyzer"
	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/testutil"
)

func newHeuristic(t *testing.T) *analyzer.HeuristicAnalyzer {
	t.Helper()
	h, err := analyzer.NewHeuristicAnalyzer(analyzer.DefaultConfig(), &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("NewHeuristicAnalyzer: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHeuristic_CleanPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><h1>Company news</h1><p>All quiet.</p></body></html>`)
	}))
	t.Cleanup(srv.Close)

	h := newHeuristic(t)
	res, err := h.Analyze(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// httptest serves plain HTTP, so the ssl rule fires; nothing else should.
	if res.ThreatLevel == model.LevelMalicious {
		t.Errorf("clean page scored Malicious: %d", res.RiskScore)
	}
	if len(res.Checks) != 10 {
		t.Errorf("checks has %d entries, want all 10 indicators", len(res.Checks))
	}
	if res.Recommendations == nil {
		t.Error("recommendations must not be nil")
	}
}

func TestHeuristic_PhishingIndicators(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<form action="https://elsewhere.example/collect">
				<input type="text" name="user">
				<input type="password" name="pass">
			</form>
			<script>eval(atob("ZG9jdW1lbnQ="));</script>
			<iframe width="0" height="0" src="https://tracker.example"></iframe>
		</body></html>`)
	}))
	t.Cleanup(srv.Close)

	h := newHeuristic(t)
	res, err := h.Analyze(context.Background(), srv.URL+"/secure-login-verify")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	clean, err := h.Analyze(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Analyze clean: %v", err)
	}
	// Same page body, but the keyword-laden URL must raise the score.
	if res.RiskScore <= clean.RiskScore {
		t.Errorf("keyword URL score %d not above clean score %d", res.RiskScore, clean.RiskScore)
	}
	if res.Breakdown["phishing_indicators"] == 0 {
		t.Errorf("phishing_indicators = 0, breakdown = %v", res.Breakdown)
	}
	if res.Checks["phishing_check"] == "no findings" {
		t.Errorf("phishing_check = %q", res.Checks["phishing_check"])
	}
	if !res.ThreatLevel.Valid() {
		t.Errorf("invalid threat level %q", res.ThreatLevel)
	}
}

func TestHeuristic_UnreachableHostIsNotAFault(t *testing.T) {
	t.Parallel()

	h := newHeuristic(t)
	res, err := h.Analyze(context.Background(), "https://does-not-resolve.invalid")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Checks["dns_lookup"] != "host unreachable at scan time" {
		t.Errorf("dns_lookup = %q", res.Checks["dns_lookup"])
	}
}

func TestHeuristic_ScoreConsistentWithLevel(t *testing.T) {
	t.Parallel()

	// Short-timeout client: the TEST-NET host never answers.
	h, err := analyzer.NewHeuristicAnalyzer(analyzer.DefaultConfig(), &testutil.DummyLogger{},
		&http.Client{Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewHeuristicAnalyzer: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	res, err := h.Analyze(context.Background(), "http://192.0.2.7/login-verify-account-update")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var want model.ThreatLevel
	switch {
	case res.RiskScore <= 30:
		want = model.LevelSafe
	case res.RiskScore <= 70:
		want = model.LevelSuspicious
	default:
		want = model.LevelMalicious
	}
	if res.ThreatLevel != want {
		t.Errorf("score %d labeled %s, want %s", res.RiskScore, res.ThreatLevel, want)
	}
}
