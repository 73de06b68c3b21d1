package server

import (
	"time"

	"github.com/raysh454/securescan/internal/model"
)

// ScanRequest is the POST /scan payload.
type ScanRequest struct {
	URL    string `json:"url"`
	UserID int64  `json:"userId,omitempty"`
}

// ScanResponse flattens the persisted record and its analysis payload into
// the wire shape scan clients expect.
type ScanResponse struct {
	ID              int64              `json:"id"`
	URL             string             `json:"url"`
	RiskScore       int                `json:"risk_score"`
	ThreatLevel     model.ThreatLevel  `json:"threat_level"`
	Breakdown       map[string]float64 `json:"breakdown"`
	Checks          map[string]string  `json:"checks"`
	Recommendations []string           `json:"recommendations"`
	Summary         string             `json:"summary"`
	CreatedAt       time.Time          `json:"created_at"`
}

// BulkScanRequest is the POST /scan/bulk payload.
type BulkScanRequest struct {
	URLs   []string `json:"urls"`
	UserID int64    `json:"userId,omitempty"`
}

// CreateAlertRuleRequest is the POST /alerts payload.
type CreateAlertRuleRequest struct {
	UserID    int64  `json:"userId,omitempty"`
	RuleType  string `json:"rule_type"`
	Threshold int    `json:"threshold"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

func scanResponseFrom(rec *model.ScanRecord) ScanResponse {
	resp := ScanResponse{
		ID:          rec.ID,
		URL:         rec.URL,
		RiskScore:   rec.RiskScore,
		ThreatLevel: rec.ThreatLevel,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.Analysis != nil {
		resp.Breakdown = rec.Analysis.Breakdown
		resp.Checks = rec.Analysis.Checks
		resp.Recommendations = rec.Analysis.Recommendations
		resp.Summary = rec.Analysis.Summary
	}
	return resp
}
