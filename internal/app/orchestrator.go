package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/securescan/internal/events"
	"github.com/raysh454/securescan/internal/interfaces"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/metrics"
	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/risk"
	"github.com/raysh454/securescan/internal/store"
	"github.com/raysh454/securescan/internal/validator"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress (optional fields)
	Processed int `json:"processed,omitempty"`
	Total     int `json:"total,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// BulkResult is the per-URL outcome of a bulk scan job.
type BulkResult struct {
	URL         string            `json:"url"`
	ScanID      int64             `json:"scan_id,omitempty"`
	RiskScore   int               `json:"risk_score,omitempty"`
	ThreatLevel model.ThreatLevel `json:"threat_level,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Job is one bulk scan run. Individual URL failures are recorded in Results
// and do not fail the job; only cancellation or a total inability to run do.
type Job struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"` // "bulk-scan"
	UserID    int64         `json:"user_id,omitempty"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Results   []BulkResult  `json:"results,omitempty"`
	Events    chan JobEvent `json:"-"`
}

// Orchestrator wires the scan pipeline: validator → analyzer → risk model →
// store, with a scan.completed event after each durable insert. It also
// tracks in-flight bulk scan jobs.
type Orchestrator struct {
	cfg       *Config
	store     store.Store
	analyzer  interfaces.Analyzer
	publisher events.Publisher
	logger    logging.Logger

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
}

// NewOrchestrator ties together config, store, analyzer, publisher and
// logger. publisher may be nil; events are then discarded.
func NewOrchestrator(cfg *Config, st store.Store, an interfaces.Analyzer, pub events.Publisher, logger logging.Logger) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("app: nil store provided")
	}
	if an == nil {
		return nil, fmt.Errorf("app: nil analyzer provided")
	}
	if logger == nil {
		return nil, fmt.Errorf("app: nil logger provided")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		analyzer:  an,
		publisher: pub,
		logger:    logger,
	}, nil
}

// Scan runs the full pipeline for one URL and returns the persisted record.
// The error preserves the failing stage's identity: validation errors match
// validator.ErrInvalidURL, provider failures match the analyzer package's
// sentinels, anything else is a persistence fault. Persistence is
// all-or-nothing; a failed insert leaves no partial record behind.
func (o *Orchestrator) Scan(ctx context.Context, req model.ScanRequest) (*model.ScanRecord, error) {
	url := strings.TrimSpace(req.URL)

	if err := validator.Validate(url); err != nil {
		metrics.ValidationErrorsTotal.Inc()
		o.logger.Warn("scan rejected by validator", logging.Field{Key: "url", Value: url})
		return nil, err
	}

	// The analyzer call happens before any store involvement, so no store
	// lock is ever held across network I/O.
	res, err := o.analyzer.Analyze(ctx, url)
	if err != nil {
		metrics.ProviderErrorsTotal.Inc()
		o.logger.Warn("analysis failed",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("analyzing %s: %w", url, err)
	}

	score, level, err := risk.Finalize(res)
	if err != nil {
		metrics.ProviderErrorsTotal.Inc()
		return nil, fmt.Errorf("finalizing verdict for %s: %w", url, err)
	}
	res.RiskScore = score
	res.ThreatLevel = level

	id, err := o.store.Insert(ctx, &model.ScanRecord{
		UserID:      req.UserID,
		URL:         url,
		RiskScore:   score,
		ThreatLevel: level,
		Analysis:    res,
	})
	if err != nil {
		metrics.PersistenceErrorsTotal.Inc()
		o.logger.Error("persisting scan failed",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("persisting scan of %s: %w", url, err)
	}

	rec, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading back scan %d: %w", id, err)
	}

	metrics.ScansTotal.WithLabelValues(string(level)).Inc()
	o.logger.Info("scan completed",
		logging.Field{Key: "id", Value: rec.ID},
		logging.Field{Key: "url", Value: url},
		logging.Field{Key: "risk_score", Value: score},
		logging.Field{Key: "threat_level", Value: level})

	// The event is best-effort: a broker outage must not fail a scan that
	// is already durable.
	if err := o.publisher.PublishScanCompleted(rec); err != nil {
		o.logger.Warn("publishing scan.completed failed",
			logging.Field{Key: "id", Value: rec.ID},
			logging.Field{Key: "error", Value: err.Error()})
	}

	return rec, nil
}

// ─── Read-side delegation ──────────────────────────────────────────────

func (o *Orchestrator) GetScan(ctx context.Context, id int64) (*model.ScanRecord, error) {
	return o.store.GetByID(ctx, id)
}

func (o *Orchestrator) CreateAlertRule(ctx context.Context, rule *model.AlertRule) (int64, error) {
	return o.store.CreateAlertRule(ctx, rule)
}

func (o *Orchestrator) ListAlertRules(ctx context.Context, userID int64) ([]*model.AlertRule, error) {
	return o.store.ListAlertRules(ctx, userID)
}

func (o *Orchestrator) DeleteAlertRule(ctx context.Context, id int64) error {
	return o.store.DeleteAlertRule(ctx, id)
}

// ─── Bulk scan jobs ────────────────────────────────────────────────────

func (o *Orchestrator) ensureJobMaps() {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobs == nil {
		o.jobs = make(map[string]*Job)
	}
	if o.jobCancels == nil {
		o.jobCancels = make(map[string]context.CancelFunc)
	}
}

func (o *Orchestrator) emitJobEvent(jobID string, ev JobEvent) {
	o.jobsMu.Lock()
	job, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok || job == nil || job.Events == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (o *Orchestrator) setJobStatus(jobID string, status JobStatus, errMsg string) {
	o.jobsMu.Lock()
	if j, ok := o.jobs[jobID]; ok {
		j.Status = status
		j.Error = errMsg
	}
	o.jobsMu.Unlock()
	o.emitJobEvent(jobID, JobEvent{
		JobID:  jobID,
		Type:   JobEventStatus,
		Status: status,
		Error:  errMsg,
	})
}

// StartBulkScanJob scans every URL in urls asynchronously with a bounded
// worker pool and returns immediately with the pending job. Per-URL
// failures are collected as results; cancellation stops remaining work.
// The returned job is the live struct: its Events channel is for
// consuming progress, its other fields are mutated by workers. Callers
// that serialize job state must go through GetJob or ListJobs.
func (o *Orchestrator) StartBulkScanJob(ctx context.Context, userID int64, urls []string) (*Job, error) {
	o.ensureJobMaps()

	if len(urls) == 0 {
		return nil, fmt.Errorf("app: bulk scan requires at least one url")
	}
	if max := o.cfg.MaxBulkURLs; max > 0 && len(urls) > max {
		return nil, fmt.Errorf("app: bulk scan limited to %d urls, got %d", max, len(urls))
	}

	jobID := uuid.New().String()
	job := &Job{
		ID:        jobID,
		Type:      "bulk-scan",
		UserID:    userID,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		Total:     len(urls),
		Events:    make(chan JobEvent, o.cfg.JobEventBuffer),
	}

	o.jobsMu.Lock()
	o.jobs[jobID] = job
	o.jobsMu.Unlock()

	jobCtx, cancel := context.WithCancel(ctx)
	o.jobsMu.Lock()
	o.jobCancels[jobID] = cancel
	o.jobsMu.Unlock()

	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobPending})

	go o.runBulkJob(jobCtx, jobID, userID, urls)

	return job, nil
}

func (o *Orchestrator) runBulkJob(ctx context.Context, jobID string, userID int64, urls []string) {
	defer func() {
		o.jobsMu.Lock()
		j := o.jobs[jobID]
		if j != nil {
			j.EndedAt = time.Now().UTC()
		}
		delete(o.jobCancels, jobID)
		o.jobsMu.Unlock()

		if j != nil {
			metrics.BulkJobsTotal.WithLabelValues(string(j.Status)).Inc()
			// Close events channel so websocket loops terminate cleanly.
			if j.Events != nil {
				close(j.Events)
			}
		}
	}()

	o.setJobStatus(jobID, JobRunning, "")

	concurrency := o.cfg.BulkConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	work := make(chan string)
	results := make(chan BulkResult)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range work {
				results <- o.scanOne(ctx, userID, url)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, url := range urls {
			select {
			case work <- url:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for res := range results {
		processed++
		o.jobsMu.Lock()
		if j, ok := o.jobs[jobID]; ok {
			j.Processed = processed
			j.Results = append(j.Results, res)
		}
		o.jobsMu.Unlock()
		o.emitJobEvent(jobID, JobEvent{
			JobID:     jobID,
			Type:      JobEventProgress,
			Processed: processed,
			Total:     len(urls),
		})
	}

	select {
	case <-ctx.Done():
		o.setJobStatus(jobID, JobCanceled, ctx.Err().Error())
	default:
		o.jobsMu.Lock()
		if j, ok := o.jobs[jobID]; ok {
			j.Status = JobDone
		}
		o.jobsMu.Unlock()
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventResult, Status: JobDone})
	}
}

func (o *Orchestrator) scanOne(ctx context.Context, userID int64, url string) BulkResult {
	rec, err := o.Scan(ctx, model.ScanRequest{URL: url, UserID: userID})
	if err != nil {
		return BulkResult{URL: url, Error: err.Error()}
	}
	return BulkResult{
		URL:         url,
		ScanID:      rec.ID,
		RiskScore:   rec.RiskScore,
		ThreatLevel: rec.ThreatLevel,
	}
}

func (o *Orchestrator) CancelJob(jobID string) {
	o.jobsMu.Lock()
	cancel := o.jobCancels[jobID]
	o.jobsMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// snapshotLocked copies a job for handing outside the orchestrator. The
// live struct keeps being mutated by the worker under jobsMu, so callers
// only ever see a detached copy. Caller must hold jobsMu.
func snapshotLocked(j *Job) *Job {
	cp := *j
	cp.Events = nil
	cp.Results = append([]BulkResult(nil), j.Results...)
	return &cp
}

// GetJob returns a point-in-time copy of the job, or nil if unknown.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	return snapshotLocked(j)
}

// ListJobs returns point-in-time copies of all known jobs, newest first.
func (o *Orchestrator) ListJobs() []*Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()

	jobs := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		jobs = append(jobs, snapshotLocked(j))
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartedAt.After(jobs[k].StartedAt)
	})
	return jobs
}

// Close cancels in-flight jobs and shuts down the analyzer and publisher.
// The store is owned by whoever constructed it.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.jobCancels))
	for _, c := range o.jobCancels {
		cancels = append(cancels, c)
	}
	o.jobsMu.Unlock()
	for _, c := range cancels {
		c()
	}

	if err := o.analyzer.Close(); err != nil {
		o.logger.Warn("closing analyzer", logging.Field{Key: "error", Value: err.Error()})
	}
	if err := o.publisher.Close(); err != nil {
		o.logger.Warn("closing publisher", logging.Field{Key: "error", Value: err.Error()})
	}
}
