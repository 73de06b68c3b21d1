package analyzer

import "time"

// Backend names accepted by New.
const (
	BackendProvider  = "provider"
	BackendHeuristic = "heuristic"
)

// Config controls analyzer construction.
type Config struct {
	// Backend selects the implementation: "provider" or "heuristic".
	Backend string `yaml:"backend"`

	// Endpoint is the analysis collaborator's URL (provider backend).
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the collaborator. Optional.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single provider round trip. One attempt, no retry;
	// the deadline is the only recovery mechanism.
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond throttles provider calls. <= 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// CacheSize enables a TTL-bounded LRU of verdicts per URL when > 0.
	CacheSize int `yaml:"cache_size"`

	// CacheTTL is how long a cached verdict stays fresh. Zero means 5m.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns a Config with development defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:           BackendHeuristic,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		CacheSize:         0,
		CacheTTL:          5 * time.Minute,
	}
}
