package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raysh454/securescan/internal/analyzer"
	"github.com/raysh454/securescan/internal/app"
	"github.com/raysh454/securescan/internal/events"
	"github.com/raysh454/securescan/internal/history"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/stats"
	"github.com/raysh454/securescan/internal/store"
	"github.com/raysh454/securescan/internal/validator"
)

// Server is the HTTP + WebSocket API surface for SecureScan.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	aggregator   *stats.Aggregator
	history      *history.History
	store        store.Store
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a Server with its own Orchestrator, aggregation and
// history readers. The store and analyzer are built from cfg unless
// injected.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}
	if cfg.AnalyzerConfig == nil {
		cfg.AnalyzerConfig = analyzer.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	st := cfg.Store
	if st == nil {
		sqlStore, err := store.NewSQLiteStore(&store.Config{Path: cfg.DBPath}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening scan store: %w", err)
		}
		st = sqlStore
	}

	an := cfg.Analyzer
	if an == nil {
		built, err := analyzer.New(cfg.AnalyzerConfig, logger, nil)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("building analyzer: %w", err)
		}
		an = built
	}

	var pub events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			// Events are best-effort; a missing broker degrades, not fails.
			logger.Warn("event publishing disabled",
				logging.Field{Key: "url", Value: cfg.NATSURL},
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			pub = natsPub
		}
	}

	orch, err := app.NewOrchestrator(cfg.AppConfig, st, an, pub, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	agg, err := stats.NewAggregator(st, logger)
	if err != nil {
		orch.Close()
		st.Close()
		return nil, fmt.Errorf("creating aggregator: %w", err)
	}

	hist, err := history.New(st, logger, cfg.HistoryPageSize)
	if err != nil {
		orch.Close()
		st.Close()
		return nil, fmt.Errorf("creating history reader: %w", err)
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		aggregator:   agg,
		history:      hist,
		store:        st,
		router:       r,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/scan/bulk", s.optionsHandler("POST"))
	r.Options("/history", s.optionsHandler("GET"))
	r.Options("/dashboard-stats", s.optionsHandler("GET"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))
	r.Options("/alerts", s.optionsHandler("GET, POST"))
	r.Options("/alerts/{ruleID}", s.optionsHandler("DELETE"))

	// Scanning
	r.Post("/scan", s.handleScan)
	r.Post("/scan/bulk", s.handleStartBulkScanJob)

	// Read models
	r.Get("/history", s.handleHistory)
	r.Get("/dashboard-stats", s.handleDashboardStats)
	r.Get("/scans/{scanID}", s.handleGetScan)

	// Jobs over REST
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// WebSocket for bulk job progress
	r.Get("/ws/scan", s.handleBulkScanWS)

	// Alert rules (stored only; evaluated by external consumers)
	r.Post("/alerts", s.handleCreateAlertRule)
	r.Get("/alerts", s.handleListAlertRules)
	r.Delete("/alerts/{ruleID}", s.handleDeleteAlertRule)

	// Operational
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler, logging each request with an id.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "request_id", Value: uuid.New().String()},
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and the store.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// scanStatus maps a pipeline error to the right HTTP status: validation
// failures are the client's fault; anything past validation, provider
// outages included, surfaces as an internal failure.
func scanStatus(err error) int {
	if errors.Is(err, validator.ErrInvalidURL) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// --- HTTP handlers ---

// Scanning

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	rec, err := s.orchestrator.Scan(r.Context(), model.ScanRequest{URL: body.URL, UserID: body.UserID})
	if err != nil {
		status := scanStatus(err)
		if status == http.StatusBadRequest {
			writeError(w, status, "invalid url")
			return
		}
		s.logger.Warn("scan failed", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, scanResponseFrom(rec))
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "scanID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	rec, err := s.orchestrator.GetScan(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		s.logger.Warn("getting scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Read models

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	recs, err := s.history.Search(r.Context(), term)
	if err != nil {
		s.logger.Warn("querying history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// userId narrows the page to one user's scans; the page bound stays.
	if uid := r.URL.Query().Get("userId"); uid != "" {
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid userId")
			return
		}
		filtered := make([]*model.ScanRecord, 0, len(recs))
		for _, rec := range recs {
			if rec.UserID == id {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}

	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.aggregator.Dashboard(r.Context())
	if err != nil {
		s.logger.Warn("computing dashboard stats", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// Jobs (REST)

func (s *Server) handleStartBulkScanJob(w http.ResponseWriter, r *http.Request) {
	var body BulkScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(body.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "missing urls")
		return
	}

	// The job outlives this request; it is canceled explicitly, not by the
	// request context.
	job, err := s.orchestrator.StartBulkScanJob(context.Background(), body.UserID, body.URLs)
	if err != nil {
		s.logger.Warn("starting bulk scan job", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("started bulk scan job",
		logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "total", Value: job.Total})
	// Marshal a snapshot; the live job is already being mutated by workers.
	writeJSON(w, http.StatusAccepted, s.orchestrator.GetJob(job.ID))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.orchestrator.CancelJob(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	writeJSON(w, http.StatusNoContent, nil)
}

// WebSocket

func (s *Server) handleBulkScanWS(w http.ResponseWriter, r *http.Request) {
	urls := r.URL.Query()["url"]
	var userID int64
	if uid := r.URL.Query().Get("userId"); uid != "" {
		if v, err := strconv.ParseInt(uid, 10, 64); err == nil {
			userID = v
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	job, err := s.orchestrator.StartBulkScanJob(r.Context(), userID, urls)
	if err != nil {
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started bulk scan job over websocket", logging.Field{Key: "job_id", Value: job.ID})
	_ = conn.WriteJSON(s.orchestrator.GetJob(job.ID))

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.orchestrator.CancelJob(job.ID)
			return
		}
	}
}

// Alert rules

func (s *Server) handleCreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var body CreateAlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.RuleType == "" {
		writeError(w, http.StatusBadRequest, "missing rule_type")
		return
	}

	rule := &model.AlertRule{
		UserID:    body.UserID,
		RuleType:  body.RuleType,
		Threshold: body.Threshold,
	}
	id, err := s.orchestrator.CreateAlertRule(r.Context(), rule)
	if err != nil {
		s.logger.Warn("creating alert rule", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListAlertRules(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if uid := r.URL.Query().Get("userId"); uid != "" {
		v, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid userId")
			return
		}
		userID = v
	}

	rules, err := s.orchestrator.ListAlertRules(r.Context(), userID)
	if err != nil {
		s.logger.Warn("listing alert rules", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rules == nil {
		rules = []*model.AlertRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleDeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	err = s.orchestrator.DeleteAlertRule(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.logger.Warn("deleting alert rule", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Operational

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
