package model

import "time"

// ThreatLevel is the categorical verdict for a scanned URL.
type ThreatLevel string

const (
	LevelSafe       ThreatLevel = "Safe"
	LevelSuspicious ThreatLevel = "Suspicious"
	LevelMalicious  ThreatLevel = "Malicious"
)

// Valid reports whether t is one of the three known levels.
func (t ThreatLevel) Valid() bool {
	switch t {
	case LevelSafe, LevelSuspicious, LevelMalicious:
		return true
	}
	return false
}

// ScanRequest represents a request to submit a URL for analysis.
type ScanRequest struct {
	// URL is the target URL to analyze.
	URL string `json:"url"`

	// UserID optionally attributes the scan to a user managed by the
	// external identity provider. Zero means anonymous.
	UserID int64 `json:"userId,omitempty"`
}

// AnalysisResult is the structured output of the analysis collaborator.
// It crosses a trust boundary: the analyzer package validates the raw
// payload against a schema and normalizes it into this shape, but the
// RiskScore here is still the provider's claim — the risk package clamps
// it and re-derives the level before a ScanRecord is built.
type AnalysisResult struct {
	// RiskScore is the provider-reported score, expected in [0, 100].
	RiskScore int `json:"risk_score"`

	// ThreatLevel is the provider-reported label. Informational only;
	// the persisted level is always recomputed from the score.
	ThreatLevel ThreatLevel `json:"threat_level"`

	// Breakdown maps weighted factor names (blacklist, domain_age,
	// ssl_validity, redirect_chain, ip_reputation, phishing_indicators)
	// to numeric sub-scores. Never nil after normalization.
	Breakdown map[string]float64 `json:"breakdown"`

	// Checks maps indicator names (dns_lookup, whois_data, ...) to
	// human-readable findings. Never nil after normalization.
	Checks map[string]string `json:"checks"`

	// Recommendations is an ordered list of remediation hints.
	// Never nil after normalization.
	Recommendations []string `json:"recommendations"`

	// Summary is the provider's free-text verdict.
	Summary string `json:"summary"`
}

// ScanRecord is the persisted outcome of one completed scan. Records are
// append-only: created exactly once, never mutated.
type ScanRecord struct {
	// ID is assigned by the store, monotonically increasing.
	ID int64 `json:"id"`

	// UserID references a user row, 0 when anonymous.
	UserID int64 `json:"user_id,omitempty"`

	// URL is stored as submitted, not normalized or deduplicated.
	URL string `json:"url"`

	// RiskScore is the clamped, final score in [0, 100].
	RiskScore int `json:"risk_score"`

	// ThreatLevel is derived from RiskScore via the fixed threshold table.
	ThreatLevel ThreatLevel `json:"threat_level"`

	// Analysis is the full provider payload, kept verbatim for replay/audit.
	Analysis *AnalysisResult `json:"scan_result,omitempty"`

	// CreatedAt is assigned by the store at insert time.
	CreatedAt time.Time `json:"created_at"`
}

// TrendBucket is the scan count for one calendar day (UTC).
type TrendBucket struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// DashboardStats is the aggregate read model served to dashboards.
type DashboardStats struct {
	TotalScans      int64         `json:"totalScans"`
	MaliciousScans  int64         `json:"maliciousScans"`
	SuspiciousScans int64         `json:"suspiciousScans"`
	SafeScans       int64         `json:"safeScans"`
	RecentScans     []*ScanRecord `json:"recentScans"`
	TopRiskDomains  []*ScanRecord `json:"topRiskDomains"`
	Trend           []TrendBucket `json:"trend"`
}

// AlertRule is a stored notification rule. Rules are persisted and listed
// but not evaluated by the core; an external consumer reads them together
// with scan.completed events.
type AlertRule struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id,omitempty"`
	RuleType  string    `json:"rule_type"`
	Threshold int       `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}
