package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/securescan/internal/model"
)

// MemoryStore is an in-process Store for tests and ephemeral deployments.
// It keeps every record in a slice guarded by a mutex; ordering semantics
// match SQLiteStore exactly.
type MemoryStore struct {
	cfg *Config

	mu         sync.Mutex
	records    []*model.ScanRecord
	rules      []*model.AlertRule
	nextScanID int64
	nextRuleID int64
}

// Ensure MemoryStore implements Store at compile-time.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(cfg *Config) *MemoryStore {
	if cfg == nil {
		cfg = &Config{}
	}
	return &MemoryStore{cfg: cfg, nextScanID: 1, nextRuleID: 1}
}

func (m *MemoryStore) Insert(ctx context.Context, rec *model.ScanRecord) (int64, error) {
	if rec == nil {
		return 0, ErrNilRecord
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	stored.ID = m.nextScanID
	stored.CreatedAt = m.cfg.now()
	m.nextScanID++
	m.records = append(m.records, &stored)

	return stored.ID, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*model.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetRecent(ctx context.Context, limit int) ([]*model.ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.sortedNewestFirst()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Search(ctx context.Context, term string, limit int) ([]*model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	term = strings.ToLower(strings.TrimSpace(term))

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.ScanRecord
	for _, r := range m.sortedNewestFirst() {
		if term != "" &&
			!strings.Contains(strings.ToLower(r.URL), term) &&
			!strings.Contains(strings.ToLower(string(r.ThreatLevel)), term) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) CountTotal(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *MemoryStore) CountByThreatLevel(ctx context.Context, level model.ThreatLevel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.records {
		if r.ThreatLevel == level {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) TopRisk(ctx context.Context, limit int) ([]*model.ScanRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var risky []*model.ScanRecord
	for _, r := range m.records {
		if r.ThreatLevel != model.LevelSafe {
			cp := *r
			risky = append(risky, &cp)
		}
	}
	sort.SliceStable(risky, func(i, j int) bool {
		if risky[i].RiskScore != risky[j].RiskScore {
			return risky[i].RiskScore > risky[j].RiskScore
		}
		if !risky[i].CreatedAt.Equal(risky[j].CreatedAt) {
			return risky[i].CreatedAt.After(risky[j].CreatedAt)
		}
		return risky[i].ID > risky[j].ID
	})
	if len(risky) > limit {
		risky = risky[:limit]
	}
	return risky, nil
}

func (m *MemoryStore) CountsByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	since = since.UTC()
	counts := make(map[string]int64)
	for _, r := range m.records {
		if r.CreatedAt.Before(since) {
			continue
		}
		counts[r.CreatedAt.UTC().Format("2006-01-02")]++
	}
	return counts, nil
}

func (m *MemoryStore) CreateAlertRule(ctx context.Context, rule *model.AlertRule) (int64, error) {
	if rule == nil {
		return 0, ErrNilRecord
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rule
	stored.ID = m.nextRuleID
	stored.CreatedAt = m.cfg.now()
	m.nextRuleID++
	m.rules = append(m.rules, &stored)

	return stored.ID, nil
}

func (m *MemoryStore) ListAlertRules(ctx context.Context, userID int64) ([]*model.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AlertRule
	for i := len(m.rules) - 1; i >= 0; i-- {
		r := m.rules[i]
		if userID != 0 && r.UserID != userID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) DeleteAlertRule(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) Close() error { return nil }

// sortedNewestFirst returns copies sorted by CreatedAt desc, id desc.
// Caller must hold m.mu.
func (m *MemoryStore) sortedNewestFirst() []*model.ScanRecord {
	out := make([]*model.ScanRecord, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
