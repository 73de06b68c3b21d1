package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
	cfg    *Config
}

// Ensure SQLiteStore implements Store at compile-time.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at cfg.Path, applies the
// schema and pragmas, and returns a ready store.
func NewSQLiteStore(cfg *Config, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		return nil, errors.New("store: nil logger provided")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Path == "" {
		cfg.Path = "securescan.db"
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("SQLiteStore initialized", logging.Field{Key: "path", Value: cfg.Path})

	return &SQLiteStore{db: db, logger: logger, cfg: cfg}, nil
}

// applySchema applies the SQLite schema to the database and sets appropriate pragmas.
func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL", // Balance between safety and performance
		"PRAGMA foreign_keys=ON",    // Enable foreign key constraints
		"PRAGMA busy_timeout=5000",  // Wait up to 5 seconds on locked database
		"PRAGMA temp_store=MEMORY",  // Store temp tables in memory
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Insert persists rec inside a short transaction so id assignment and
// durability are atomic. A failed insert leaves nothing visible.
func (s *SQLiteStore) Insert(ctx context.Context, rec *model.ScanRecord) (int64, error) {
	if rec == nil {
		return 0, ErrNilRecord
	}

	payload, err := json.Marshal(rec.Analysis)
	if err != nil {
		return 0, fmt.Errorf("marshal analysis payload: %w", err)
	}

	createdAt := s.cfg.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", logging.Field{Key: "error", Value: rbErr.Error()})
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans (user_id, url, risk_score, threat_level, scan_result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, nullableID(rec.UserID), rec.URL, rec.RiskScore, string(rec.ThreatLevel), string(payload), createdAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read assigned id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("scan persisted",
		logging.Field{Key: "id", Value: id},
		logging.Field{Key: "url", Value: rec.URL},
		logging.Field{Key: "threat_level", Value: rec.ThreatLevel})

	return id, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*model.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, url, risk_score, threat_level, scan_result_json, created_at
		FROM scans WHERE id = ?
	`, id)

	rec, err := scanRecordFromRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query scan %d: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetRecent(ctx context.Context, limit int) ([]*model.ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, url, risk_score, threat_level, scan_result_json, created_at
		FROM scans
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent scans: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *SQLiteStore) Search(ctx context.Context, term string, limit int) ([]*model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if strings.TrimSpace(term) == "" {
		return s.GetRecent(ctx, limit)
	}

	pattern := "%" + strings.ToLower(term) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, url, risk_score, threat_level, scan_result_json, created_at
		FROM scans
		WHERE lower(url) LIKE ? OR lower(threat_level) LIKE ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search scans: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *SQLiteStore) CountTotal(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountByThreatLevel(ctx context.Context, level model.ThreatLevel) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE threat_level = ?`, string(level)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scans by level: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) TopRisk(ctx context.Context, limit int) ([]*model.ScanRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, url, risk_score, threat_level, scan_result_json, created_at
		FROM scans
		WHERE threat_level != ?
		ORDER BY risk_score DESC, created_at DESC, id DESC
		LIMIT ?
	`, string(model.LevelSafe), limit)
	if err != nil {
		return nil, fmt.Errorf("query top risk scans: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountsByDay groups by the UTC calendar date of created_at. created_at is
// stored as unix seconds, so 'unixepoch' yields UTC dates.
func (s *SQLiteStore) CountsByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(created_at, 'unixepoch') AS day, COUNT(*)
		FROM scans
		WHERE created_at >= ?
		GROUP BY day
	`, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("query scan counts by day: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var day string
		var n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("scan day count: %w", err)
		}
		counts[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day counts: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) CreateAlertRule(ctx context.Context, rule *model.AlertRule) (int64, error) {
	if rule == nil {
		return 0, ErrNilRecord
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_rules (user_id, rule_type, threshold, created_at)
		VALUES (?, ?, ?, ?)
	`, nullableID(rule.UserID), rule.RuleType, rule.Threshold, s.cfg.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert alert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read assigned rule id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListAlertRules(ctx context.Context, userID int64) ([]*model.AlertRule, error) {
	query := `
		SELECT id, user_id, rule_type, threshold, created_at
		FROM alert_rules
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if userID != 0 {
		query = `
			SELECT id, user_id, rule_type, threshold, created_at
			FROM alert_rules
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
		`
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*model.AlertRule
	for rows.Next() {
		var r model.AlertRule
		var uid sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&r.ID, &uid, &r.RuleType, &r.Threshold, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		if uid.Valid {
			r.UserID = uid.Int64
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rules: %w", err)
	}
	return rules, nil
}

func (s *SQLiteStore) DeleteAlertRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLiteStore")
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle (owned by the store).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- row helpers ---

func scanRecordFromRow(scan func(...any) error) (*model.ScanRecord, error) {
	var rec model.ScanRecord
	var uid sql.NullInt64
	var payload string
	var createdAt int64
	var level string

	if err := scan(&rec.ID, &uid, &rec.URL, &rec.RiskScore, &level, &payload, &createdAt); err != nil {
		return nil, err
	}
	if uid.Valid {
		rec.UserID = uid.Int64
	}
	rec.ThreatLevel = model.ThreatLevel(level)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	var analysis model.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return nil, fmt.Errorf("unmarshal analysis payload: %w", err)
	}
	rec.Analysis = &analysis

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*model.ScanRecord, error) {
	var out []*model.ScanRecord
	for rows.Next() {
		rec, err := scanRecordFromRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
