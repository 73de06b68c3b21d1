package analyzer_test

import (
	"errors"
	"testing"

	"github.com/raysh454/securescan/internal/analyzer"
	"github.com/raysh454/securescan/internal/model"
)

func TestParsePayload_FullPayload(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"risk_score": 85,
		"threat_level": "Malicious",
		"breakdown": {"blacklist": 90, "domain_age": 70},
		"checks": {"dns_lookup": "resolved", "blacklist_check": "listed"},
		"recommendations": ["do not visit"],
		"summary": "known phishing domain"
	}`)

	res, err := analyzer.ParsePayload(raw)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if res.RiskScore != 85 {
		t.Errorf("risk score = %d, want 85", res.RiskScore)
	}
	if res.ThreatLevel != model.LevelMalicious {
		t.Errorf("threat level = %s, want Malicious", res.ThreatLevel)
	}
	if res.Breakdown["blacklist"] != 90 {
		t.Errorf("breakdown = %v", res.Breakdown)
	}
	if len(res.Recommendations) != 1 {
		t.Errorf("recommendations = %v", res.Recommendations)
	}
}

func TestParsePayload_MissingChecksBecomesEmpty(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"risk_score": 20, "threat_level": "Safe"}`)

	res, err := analyzer.ParsePayload(raw)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if res.Checks == nil || len(res.Checks) != 0 {
		t.Errorf("checks = %v, want empty map", res.Checks)
	}
	if res.Recommendations == nil || len(res.Recommendations) != 0 {
		t.Errorf("recommendations = %v, want empty slice", res.Recommendations)
	}
	if res.Breakdown == nil || len(res.Breakdown) != 0 {
		t.Errorf("breakdown = %v, want empty map", res.Breakdown)
	}
}

func TestParsePayload_MissingRiskScore(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"threat_level": "Safe", "summary": "looks fine"}`)

	_, err := analyzer.ParsePayload(raw)
	if err == nil {
		t.Fatal("expected error for missing risk_score")
	}
	if !errors.Is(err, analyzer.ErrMissingRiskScore) {
		t.Errorf("err = %v, want ErrMissingRiskScore", err)
	}
	var procErr *analyzer.ProcessingError
	if !errors.As(err, &procErr) {
		t.Errorf("err = %T, want *ProcessingError", err)
	}
}

func TestParsePayload_UnparseableJSON(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, []byte(""), []byte("not json at all"), []byte(`{"risk_score":`)} {
		_, err := analyzer.ParsePayload(raw)
		if err == nil {
			t.Errorf("ParsePayload(%q) = nil error, want ProcessingError", raw)
			continue
		}
		var procErr *analyzer.ProcessingError
		if !errors.As(err, &procErr) {
			t.Errorf("ParsePayload(%q) err = %T, want *ProcessingError", raw, err)
		}
	}
}

func TestParsePayload_WrongTypes(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"risk_score": "very high"}`)
	if _, err := analyzer.ParsePayload(raw); err == nil {
		t.Error("expected schema violation for non-integer risk_score")
	}
}
