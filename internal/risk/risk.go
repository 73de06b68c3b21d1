// Package risk owns the scoring policy: the factor weight table, the
// score-to-level threshold table, and the clamping applied at the boundary
// where a ScanRecord is built. The provider's own label is never trusted.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/raysh454/securescan/internal/model"
)

// Factor weights. The analysis collaborator is expected to have already
// applied these when computing risk_score; Weighted recombines them so the
// provider's arithmetic can be cross-checked.
var Weights = map[string]float64{
	"blacklist":           0.30,
	"domain_age":          0.15,
	"ssl_validity":        0.10,
	"redirect_chain":      0.10,
	"ip_reputation":       0.15,
	"phishing_indicators": 0.20,
}

// Threshold table, inclusive upper bounds.
const (
	safeMax       = 30
	suspiciousMax = 70
	scoreMax      = 100
)

// ErrNoResult is returned when Finalize is handed a nil analysis.
var ErrNoResult = errors.New("risk: nil analysis result")

// LevelForScore maps a score to its threat level:
// 0-30 Safe, 31-70 Suspicious, 71-100 Malicious.
// The score is clamped first, so any int is safe to pass.
func LevelForScore(score int) model.ThreatLevel {
	score = Clamp(score)
	switch {
	case score <= safeMax:
		return model.LevelSafe
	case score <= suspiciousMax:
		return model.LevelSuspicious
	default:
		return model.LevelMalicious
	}
}

// Clamp bounds a score into [0, 100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > scoreMax {
		return scoreMax
	}
	return score
}

// Finalize produces the (riskScore, threatLevel) pair that gets persisted.
// The provider score is clamped into range and the level is always
// recomputed from the clamped score, regardless of the label the provider
// supplied. An out-of-range provider label is therefore harmless; a wildly
// out-of-range score is reduced to the nearest bound rather than rejected.
func Finalize(res *model.AnalysisResult) (int, model.ThreatLevel, error) {
	if res == nil {
		return 0, "", ErrNoResult
	}
	score := Clamp(res.RiskScore)
	return score, LevelForScore(score), nil
}

// Weighted recombines a factor breakdown using the fixed weight table.
// Unknown factor names are an error so provider schema drift surfaces
// instead of silently skewing the combined score.
func Weighted(breakdown map[string]float64) (float64, error) {
	var total float64
	for name, sub := range breakdown {
		w, ok := Weights[name]
		if !ok {
			return 0, fmt.Errorf("risk: unknown factor %q", name)
		}
		total += w * sub
	}
	return math.Round(total*100) / 100, nil
}
