package analyzer

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/securescan/internal/interfaces"
	"github.com/raysh454/securescan/internal/logging"
)

// New constructs the configured analyzer backend, wrapped in the verdict
// cache when cfg.CacheSize > 0. httpClient may be nil.
func New(cfg *Config, logger logging.Logger, httpClient *http.Client) (interfaces.Analyzer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		inner interfaces.Analyzer
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendHeuristic:
		inner, err = NewHeuristicAnalyzer(cfg, logger, httpClient)
	case BackendProvider:
		inner, err = NewProviderClient(cfg, logger, httpClient)
	default:
		return nil, fmt.Errorf("analyzer: unknown backend %q (available: %s, %s)",
			cfg.Backend, BackendProvider, BackendHeuristic)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		return NewCachedAnalyzer(inner, cfg.CacheSize, cfg.CacheTTL, logger)
	}
	return inner, nil
}
