// Package metrics exposes the service's Prometheus counters. All metrics
// are registered on the default registry and served by the server's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed scans, labeled by the final threat level.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "securescan_scans_total",
		Help: "Completed scans by threat level.",
	}, []string{"threat_level"})

	// ValidationErrorsTotal counts scan requests rejected before analysis.
	ValidationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securescan_validation_errors_total",
		Help: "Scan requests rejected by URL validation.",
	})

	// ProviderErrorsTotal counts failed analysis provider calls.
	ProviderErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securescan_provider_errors_total",
		Help: "Analysis provider calls that failed or returned bad payloads.",
	})

	// PersistenceErrorsTotal counts scans lost to storage failures.
	PersistenceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securescan_persistence_errors_total",
		Help: "Scans that analyzed successfully but failed to persist.",
	})

	// BulkJobsTotal counts bulk scan jobs, labeled by terminal status.
	BulkJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "securescan_bulk_jobs_total",
		Help: "Bulk scan jobs by terminal status.",
	}, []string{"status"})

	// EventsPublishedTotal counts scan.completed events handed to the broker.
	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securescan_events_published_total",
		Help: "scan.completed events successfully published.",
	})
)
