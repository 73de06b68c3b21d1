// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Analyzer ──────────────────────────────────────────────────────────

// FakeAnalyzer implements interfaces.Analyzer with canned per-URL results.
// By default every URL gets a Safe result with score 10. Set Results[url]
// for specific verdicts, FailURLs[url] to force an error, or Err to fail
// every call. ResponseDelay simulates a slow provider.
type FakeAnalyzer struct {
	Results       map[string]*model.AnalysisResult
	FailURLs      map[string]bool
	Err           error
	ResponseDelay time.Duration

	mu    sync.Mutex
	Calls []string
}

// CallCount returns how many times Analyze ran.
func (f *FakeAnalyzer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeAnalyzer) Analyze(ctx context.Context, url string) (*model.AnalysisResult, error) {
	if f.ResponseDelay > 0 {
		select {
		case <-time.After(f.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.Calls = append(f.Calls, url)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.FailURLs != nil && f.FailURLs[url] {
		return nil, errors.New("fake analyzer failure for " + url)
	}

	if f.Results != nil {
		if res, ok := f.Results[url]; ok {
			cp := *res
			return &cp, nil
		}
	}

	return &model.AnalysisResult{
		RiskScore:       10,
		ThreatLevel:     model.LevelSafe,
		Breakdown:       map[string]float64{"blacklist": 0, "domain_age": 10, "ssl_validity": 0, "redirect_chain": 0, "ip_reputation": 0, "phishing_indicators": 5},
		Checks:          map[string]string{"dns_lookup": "resolved", "ssl_status": "valid"},
		Recommendations: []string{},
		Summary:         "fake analysis of " + url,
	}, nil
}

func (f *FakeAnalyzer) Close() error { return nil }

// CannedResult builds an AnalysisResult with the given score and level,
// handy for seeding FakeAnalyzer.Results.
func CannedResult(score int, level model.ThreatLevel) *model.AnalysisResult {
	return &model.AnalysisResult{
		RiskScore:       score,
		ThreatLevel:     level,
		Breakdown:       map[string]float64{"blacklist": float64(score)},
		Checks:          map[string]string{"blacklist_check": "listed on 1 feed"},
		Recommendations: []string{"review manually"},
		Summary:         "canned result",
	}
}
