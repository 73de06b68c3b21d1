package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/store"
	"github.com/raysh454/securescan/internal/testutil"
)

// eachStore runs fn against both Store implementations.
func eachStore(t *testing.T, clock func() time.Time, fn func(t *testing.T, s store.Store)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		dir := t.TempDir()
		s, err := store.NewSQLiteStore(&store.Config{
			Path:  filepath.Join(dir, "scans.db"),
			Clock: clock,
		}, &testutil.DummyLogger{})
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})

	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemoryStore(&store.Config{Clock: clock}))
	})
}

func record(url string, score int, level model.ThreatLevel) *model.ScanRecord {
	return &model.ScanRecord{
		URL:         url,
		RiskScore:   score,
		ThreatLevel: level,
		Analysis: &model.AnalysisResult{
			RiskScore:       score,
			ThreatLevel:     level,
			Breakdown:       map[string]float64{"blacklist": float64(score)},
			Checks:          map[string]string{"dns_lookup": "resolved"},
			Recommendations: []string{"review manually"},
			Summary:         "test record",
		},
	}
}

func TestInsertThenGetByID(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		id, err := s.Insert(ctx, record("https://example.com", 42, model.LevelSuspicious))
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if id == 0 {
			t.Fatal("expected non-zero id")
		}

		got, err := s.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.URL != "https://example.com" {
			t.Errorf("url = %q", got.URL)
		}
		if got.RiskScore != 42 {
			t.Errorf("risk score = %d, want 42", got.RiskScore)
		}
		if got.ThreatLevel != model.LevelSuspicious {
			t.Errorf("threat level = %s, want Suspicious", got.ThreatLevel)
		}
		if got.CreatedAt.IsZero() {
			t.Error("expected store-assigned CreatedAt")
		}
		if got.Analysis == nil || got.Analysis.Summary != "test record" {
			t.Errorf("analysis payload not preserved: %+v", got.Analysis)
		}
	})
}

func TestGetByID_NotFound(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		if _, err := s.GetByID(context.Background(), 9999); err != store.ErrNotFound {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestGetRecent_NewestFirst(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	var step int64
	clock := func() time.Time {
		step++
		return now.Add(time.Duration(step) * time.Minute)
	}

	eachStore(t, clock, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			url := fmt.Sprintf("https://site%d.com", i)
			if _, err := s.Insert(ctx, record(url, 10, model.LevelSafe)); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		recent, err := s.GetRecent(ctx, 3)
		if err != nil {
			t.Fatalf("GetRecent: %v", err)
		}
		if len(recent) != 3 {
			t.Fatalf("len = %d, want 3", len(recent))
		}
		for i := 1; i < len(recent); i++ {
			if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
				t.Errorf("records not newest first: %v before %v", recent[i-1].CreatedAt, recent[i].CreatedAt)
			}
		}
		if recent[0].URL != "https://site4.com" {
			t.Errorf("newest = %q, want site4", recent[0].URL)
		}
	})
}

func TestSearch(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seed := []*model.ScanRecord{
			record("https://good.com", 10, model.LevelSafe),
			record("https://iffy.net", 55, model.LevelSuspicious),
			record("https://bad.ru", 95, model.LevelMalicious),
		}
		for _, r := range seed {
			if _, err := s.Insert(ctx, r); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		// URL substring, case-insensitive.
		got, err := s.Search(ctx, "IFFY", 50)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 1 || got[0].URL != "https://iffy.net" {
			t.Errorf("Search(IFFY) = %v", urls(got))
		}

		// Threat level substring.
		got, err = s.Search(ctx, "malicious", 50)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 1 || got[0].URL != "https://bad.ru" {
			t.Errorf("Search(malicious) = %v", urls(got))
		}

		// Empty term returns everything.
		got, err = s.Search(ctx, "", 50)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Search(\"\") returned %d records, want 3", len(got))
		}
	})
}

func TestCounts(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seed := []*model.ScanRecord{
			record("https://good.com", 10, model.LevelSafe),
			record("https://iffy.net", 55, model.LevelSuspicious),
			record("https://bad.ru", 95, model.LevelMalicious),
		}
		for _, r := range seed {
			if _, err := s.Insert(ctx, r); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		total, err := s.CountTotal(ctx)
		if err != nil || total != 3 {
			t.Errorf("CountTotal = %d, %v; want 3", total, err)
		}
		for level, want := range map[model.ThreatLevel]int64{
			model.LevelSafe:       1,
			model.LevelSuspicious: 1,
			model.LevelMalicious:  1,
		} {
			n, err := s.CountByThreatLevel(ctx, level)
			if err != nil || n != want {
				t.Errorf("CountByThreatLevel(%s) = %d, %v; want %d", level, n, err, want)
			}
		}
	})
}

func TestTopRisk_ExcludesSafeAndOrders(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seed := []*model.ScanRecord{
			record("https://good.com", 10, model.LevelSafe),
			record("https://iffy.net", 55, model.LevelSuspicious),
			record("https://bad.ru", 95, model.LevelMalicious),
		}
		for _, r := range seed {
			if _, err := s.Insert(ctx, r); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		top, err := s.TopRisk(ctx, 5)
		if err != nil {
			t.Fatalf("TopRisk: %v", err)
		}
		if len(top) != 2 {
			t.Fatalf("len = %d, want 2: %v", len(top), urls(top))
		}
		if top[0].URL != "https://bad.ru" || top[1].URL != "https://iffy.net" {
			t.Errorf("order = %v, want [bad.ru iffy.net]", urls(top))
		}
		for _, r := range top {
			if r.ThreatLevel == model.LevelSafe {
				t.Errorf("TopRisk included a Safe record: %s", r.URL)
			}
		}
	})
}

func TestCountsByDay(t *testing.T) {
	day1 := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	times := []time.Time{day1, day1.Add(time.Hour), day2}
	var i int
	clock := func() time.Time {
		ts := times[i%len(times)]
		i++
		return ts
	}

	eachStore(t, clock, func(t *testing.T, s store.Store) {
		i = 0
		ctx := context.Background()
		for j := 0; j < 3; j++ {
			if _, err := s.Insert(ctx, record(fmt.Sprintf("https://d%d.com", j), 10, model.LevelSafe)); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		counts, err := s.CountsByDay(ctx, day1.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("CountsByDay: %v", err)
		}
		if counts["2026-08-25"] != 2 {
			t.Errorf("counts[2026-08-25] = %d, want 2", counts["2026-08-25"])
		}
		if counts["2026-08-27"] != 1 {
			t.Errorf("counts[2026-08-27] = %d, want 1", counts["2026-08-27"])
		}
		if _, ok := counts["2026-08-26"]; ok {
			t.Error("empty day should be absent from the raw map")
		}
	})
}

func TestConcurrentInserts(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		const n = 20

		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				url := fmt.Sprintf("https://concurrent%d.com", i)
				id, err := s.Insert(ctx, record(url, 50, model.LevelSuspicious))
				if err != nil {
					t.Errorf("Insert: %v", err)
					return
				}
				ids <- id
			}(i)
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			if seen[id] {
				t.Errorf("duplicate id %d", id)
			}
			seen[id] = true
		}
		if len(seen) != n {
			t.Fatalf("got %d distinct ids, want %d", len(seen), n)
		}

		total, err := s.CountTotal(ctx)
		if err != nil {
			t.Fatalf("CountTotal: %v", err)
		}
		if total != n {
			t.Errorf("visible records = %d, want %d", total, n)
		}
	})
}

func TestAlertRules(t *testing.T) {
	eachStore(t, nil, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		id, err := s.CreateAlertRule(ctx, &model.AlertRule{UserID: 7, RuleType: "score_above", Threshold: 80})
		if err != nil {
			t.Fatalf("CreateAlertRule: %v", err)
		}
		if _, err := s.CreateAlertRule(ctx, &model.AlertRule{UserID: 8, RuleType: "any_malicious", Threshold: 0}); err != nil {
			t.Fatalf("CreateAlertRule: %v", err)
		}

		mine, err := s.ListAlertRules(ctx, 7)
		if err != nil {
			t.Fatalf("ListAlertRules: %v", err)
		}
		if len(mine) != 1 || mine[0].RuleType != "score_above" {
			t.Errorf("ListAlertRules(7) = %+v", mine)
		}

		all, err := s.ListAlertRules(ctx, 0)
		if err != nil {
			t.Fatalf("ListAlertRules: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("ListAlertRules(0) returned %d rules, want 2", len(all))
		}

		if err := s.DeleteAlertRule(ctx, id); err != nil {
			t.Fatalf("DeleteAlertRule: %v", err)
		}
		if err := s.DeleteAlertRule(ctx, id); err != store.ErrNotFound {
			t.Errorf("second delete err = %v, want ErrNotFound", err)
		}
	})
}

func urls(recs []*model.ScanRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.URL
	}
	return out
}
