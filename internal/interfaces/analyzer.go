package interfaces

import (
	"context"

	"github.com/raysh454/securescan/internal/model"
)

// Analyzer is the contract for producing a security analysis of a URL.
// Implementations may call an external analysis collaborator, run local
// heuristics, or serve canned results for tests. Returned results are
// schema-validated and normalized (optional collections are never nil);
// the risk score is NOT yet clamped or re-leveled — that happens in the
// risk package at the record boundary.
//
// Implementations must honor ctx cancellation and must not hold any store
// lock for the duration of the call.
type Analyzer interface {
	// Analyze produces an AnalysisResult for the given URL.
	Analyze(ctx context.Context, url string) (*model.AnalysisResult, error)

	// Close releases any resources held by the analyzer.
	Close() error
}
