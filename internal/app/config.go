package app

// Config contains the orchestrator's runtime options. Kept deliberately
// small; component-specific options live with their components.
type Config struct {
	// BulkConcurrency is the worker count for bulk scan jobs.
	BulkConcurrency int

	// MaxBulkURLs caps how many URLs a single bulk job accepts.
	MaxBulkURLs int

	// JobEventBuffer sizes each job's event channel. Events beyond the
	// buffer are dropped rather than blocking the scan pipeline.
	JobEventBuffer int
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		BulkConcurrency: 4,
		MaxBulkURLs:     100,
		JobEventBuffer:  16,
	}
}
