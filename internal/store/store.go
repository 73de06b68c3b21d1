package store

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/securescan/internal/model"
)

var (
	// ErrNotFound is returned when a record or rule id does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrNilRecord is returned when Insert is handed a nil record.
	ErrNilRecord = errors.New("store: nil record")
)

// Store is the append-only scan log plus the auxiliary tables that hang off
// it (alert rules; the users table is owned by the external identity
// provider and only referenced here). Implementations must be safe for
// concurrent use: concurrent Inserts may not lose records or hand out
// duplicate ids, and a successful Insert must be visible to subsequent
// reads in the same process.
type Store interface {
	// Insert persists a new ScanRecord and returns its assigned id.
	// The store assigns both the id and CreatedAt; values already present
	// on the record are ignored. The record is never mutated afterwards.
	Insert(ctx context.Context, rec *model.ScanRecord) (int64, error)

	// GetByID returns the record with the given id or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.ScanRecord, error)

	// GetRecent returns up to limit records, newest first.
	GetRecent(ctx context.Context, limit int) ([]*model.ScanRecord, error)

	// Search returns up to limit records whose url or threat level
	// contains term as a case-insensitive substring, newest first.
	// An empty term matches everything.
	Search(ctx context.Context, term string, limit int) ([]*model.ScanRecord, error)

	// CountTotal returns the number of persisted scans.
	CountTotal(ctx context.Context) (int64, error)

	// CountByThreatLevel returns the number of scans with the given level.
	CountByThreatLevel(ctx context.Context, level model.ThreatLevel) (int64, error)

	// TopRisk returns up to limit non-Safe records ordered by risk score
	// descending, ties broken by most recent first.
	TopRisk(ctx context.Context, limit int) ([]*model.ScanRecord, error)

	// CountsByDay returns scan counts grouped by UTC calendar day
	// (YYYY-MM-DD) for records created at or after since. Days without
	// scans are absent from the map; zero-filling is the aggregation
	// engine's job.
	CountsByDay(ctx context.Context, since time.Time) (map[string]int64, error)

	// CreateAlertRule stores a rule and returns its id. Rules are never
	// evaluated by the core.
	CreateAlertRule(ctx context.Context, rule *model.AlertRule) (int64, error)

	// ListAlertRules returns rules for a user (all rules when userID is 0),
	// newest first.
	ListAlertRules(ctx context.Context, userID int64) ([]*model.AlertRule, error)

	// DeleteAlertRule removes a rule or returns ErrNotFound.
	DeleteAlertRule(ctx context.Context, id int64) error

	// Close releases resources held by the store.
	Close() error
}

// Config carries store construction options.
type Config struct {
	// Path is the SQLite database file path. Ignored by MemoryStore.
	Path string

	// Clock overrides the time source for CreatedAt assignment.
	// Nil means time.Now. Tests use this to place records on fixed days.
	Clock func() time.Time
}

func (c *Config) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}
