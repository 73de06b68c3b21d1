package analyzer

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/raysh454/securescan/internal/interfaces"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
)

// CachedAnalyzer memoizes verdicts per URL for a bounded TTL so bursts of
// scans for the same URL (bulk uploads, dashboards re-checking) do not hit
// the provider repeatedly. Only successful results are cached; errors
// always pass through so a flaky provider is retried on the next request.
type CachedAnalyzer struct {
	inner  interfaces.Analyzer
	cache  *lru.Cache[string, cacheEntry]
	ttl    time.Duration
	logger logging.Logger

	// clock is the freshness time source. Defaults to time.Now.
	clock func() time.Time
}

type cacheEntry struct {
	result   *model.AnalysisResult
	cachedAt time.Time
}

// Ensure CachedAnalyzer implements the Analyzer contract at compile-time.
var _ interfaces.Analyzer = (*CachedAnalyzer)(nil)

// NewCachedAnalyzer wraps inner with an LRU of size entries and the given
// TTL. size must be positive.
func NewCachedAnalyzer(inner interfaces.Analyzer, size int, ttl time.Duration, logger logging.Logger) (*CachedAnalyzer, error) {
	if inner == nil {
		return nil, errors.New("analyzer: nil inner analyzer provided")
	}
	if logger == nil {
		return nil, errors.New("analyzer: nil logger provided")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}

	return &CachedAnalyzer{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(logging.Field{Key: "component", Value: "cached-analyzer"}),
		clock:  time.Now,
	}, nil
}

// SetClock overrides the freshness time source. Intended for tests.
func (c *CachedAnalyzer) SetClock(clock func() time.Time) {
	if clock != nil {
		c.clock = clock
	}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, url string) (*model.AnalysisResult, error) {
	if entry, ok := c.cache.Get(url); ok {
		if c.clock().Sub(entry.cachedAt) < c.ttl {
			c.logger.Debug("analysis cache hit", logging.Field{Key: "url", Value: url})
			cp := *entry.result
			return &cp, nil
		}
		c.cache.Remove(url)
	}

	result, err := c.inner.Analyze(ctx, url)
	if err != nil {
		return nil, err
	}

	c.cache.Add(url, cacheEntry{result: result, cachedAt: c.clock()})
	cp := *result
	return &cp, nil
}

func (c *CachedAnalyzer) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
