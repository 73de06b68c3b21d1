// Package stats computes the dashboard read model over the scan store.
// Every computation is a plain read at call time: nothing is cached, and
// reads are not isolated from concurrent inserts (read-committed is enough
// for a dashboard).
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/store"
)

const (
	// DefaultRecentLimit is how many recent scans the dashboard shows.
	DefaultRecentLimit = 10

	// DefaultTopRiskLimit is how many top-risk entries the dashboard shows.
	DefaultTopRiskLimit = 5

	// DefaultTrendDays is the trend window in calendar days.
	DefaultTrendDays = 7
)

// Aggregator computes dashboard statistics from a Store.
type Aggregator struct {
	store  store.Store
	logger logging.Logger

	// clock is the time source for the trend window. Defaults to time.Now.
	clock func() time.Time
}

// NewAggregator constructs an Aggregator over the given store.
func NewAggregator(s store.Store, logger logging.Logger) (*Aggregator, error) {
	if s == nil {
		return nil, errors.New("stats: nil store provided")
	}
	if logger == nil {
		return nil, errors.New("stats: nil logger provided")
	}
	return &Aggregator{store: s, logger: logger, clock: time.Now}, nil
}

// SetClock overrides the time source. Intended for tests.
func (a *Aggregator) SetClock(clock func() time.Time) {
	if clock != nil {
		a.clock = clock
	}
}

// Dashboard assembles the full dashboard payload: exact counts per level,
// the most recent scans, the top-risk ranking, and the trend window.
func (a *Aggregator) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	total, err := a.store.CountTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("total count: %w", err)
	}

	counts := make(map[model.ThreatLevel]int64, 3)
	for _, level := range []model.ThreatLevel{model.LevelSafe, model.LevelSuspicious, model.LevelMalicious} {
		n, err := a.store.CountByThreatLevel(ctx, level)
		if err != nil {
			return nil, fmt.Errorf("count %s scans: %w", level, err)
		}
		counts[level] = n
	}

	recent, err := a.RecentScans(ctx, DefaultRecentLimit)
	if err != nil {
		return nil, err
	}

	top, err := a.TopRiskDomains(ctx, DefaultTopRiskLimit)
	if err != nil {
		return nil, err
	}

	trend, err := a.Trend(ctx, DefaultTrendDays)
	if err != nil {
		return nil, err
	}

	return &model.DashboardStats{
		TotalScans:      total,
		MaliciousScans:  counts[model.LevelMalicious],
		SuspiciousScans: counts[model.LevelSuspicious],
		SafeScans:       counts[model.LevelSafe],
		RecentScans:     recent,
		TopRiskDomains:  top,
		Trend:           trend,
	}, nil
}

// RecentScans returns the n most recent scans, newest first.
func (a *Aggregator) RecentScans(ctx context.Context, n int) ([]*model.ScanRecord, error) {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	recs, err := a.store.GetRecent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("recent scans: %w", err)
	}
	if recs == nil {
		recs = []*model.ScanRecord{}
	}
	return recs, nil
}

// TopRiskDomains returns up to n non-Safe scans ordered by risk score
// descending, ties broken by most recent first.
func (a *Aggregator) TopRiskDomains(ctx context.Context, n int) ([]*model.ScanRecord, error) {
	if n <= 0 {
		n = DefaultTopRiskLimit
	}
	recs, err := a.store.TopRisk(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("top risk domains: %w", err)
	}
	if recs == nil {
		recs = []*model.ScanRecord{}
	}
	return recs, nil
}

// Trend returns one bucket per UTC calendar day for the last days days,
// today included, oldest first. Days without scans appear with count 0:
// the full date range is generated first, then filled from the store's
// grouped counts, so empty buckets are never silently dropped.
func (a *Aggregator) Trend(ctx context.Context, days int) ([]model.TrendBucket, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}

	today := a.clock().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	counts, err := a.store.CountsByDay(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("trend counts: %w", err)
	}

	buckets := make([]model.TrendBucket, 0, days)
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d).Format("2006-01-02")
		buckets = append(buckets, model.TrendBucket{Date: day, Count: counts[day]})
	}
	return buckets, nil
}
