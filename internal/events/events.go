// Package events publishes scan lifecycle events for external consumers.
// The core never evaluates alert rules itself; it announces completed scans
// on the broker and leaves alerting to whatever subscribes.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/metrics"
	"github.com/raysh454/securescan/internal/model"
)

// SubjectScanCompleted is the broker subject for completed scans.
const SubjectScanCompleted = "securescan.scan.completed"

// ScanCompleted is the wire payload published after a durable insert.
type ScanCompleted struct {
	ScanID      int64             `json:"scan_id"`
	UserID      int64             `json:"user_id,omitempty"`
	URL         string            `json:"url"`
	RiskScore   int               `json:"risk_score"`
	ThreatLevel model.ThreatLevel `json:"threat_level"`
	CreatedAt   int64             `json:"created_at"`
}

// Publisher announces completed scans. Implementations must be safe for
// concurrent use. Publish failures are the caller's to log, not to fail
// the scan over.
type Publisher interface {
	PublishScanCompleted(rec *model.ScanRecord) error
	Close() error
}

// ─── NATS ──────────────────────────────────────────────────────────────

// NATSPublisher publishes events to a NATS broker.
type NATSPublisher struct {
	conn   *nats.Conn
	logger logging.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the broker at url.
func NewNATSPublisher(url string, logger logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		return nil, errors.New("events: nil logger provided")
	}
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url,
		nats.Name("securescan"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connecting to NATS at %s: %w", url, err)
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "nats-publisher"})
	componentLogger.Info("connected to NATS", logging.Field{Key: "url", Value: url})

	return &NATSPublisher{conn: conn, logger: componentLogger}, nil
}

func (p *NATSPublisher) PublishScanCompleted(rec *model.ScanRecord) error {
	if rec == nil {
		return errors.New("events: nil record")
	}

	payload, err := json.Marshal(ScanCompleted{
		ScanID:      rec.ID,
		UserID:      rec.UserID,
		URL:         rec.URL,
		RiskScore:   rec.RiskScore,
		ThreatLevel: rec.ThreatLevel,
		CreatedAt:   rec.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("events: encoding scan.completed: %w", err)
	}

	if err := p.conn.Publish(SubjectScanCompleted, payload); err != nil {
		return fmt.Errorf("events: publishing scan.completed: %w", err)
	}
	metrics.EventsPublishedTotal.Inc()
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Drain()
	p.conn.Close()
	return nil
}

// ─── Noop ──────────────────────────────────────────────────────────────

// NoopPublisher discards events. Used when no broker URL is configured.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) PublishScanCompleted(*model.ScanRecord) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }
