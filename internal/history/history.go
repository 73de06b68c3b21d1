// Package history serves searchable scan history. Search scope is the most
// recent page of scans, not the whole table — deliberate: the history view
// is an operator tool, not an archive query engine.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/store"
)

// DefaultPageSize bounds how much history a search covers.
const DefaultPageSize = 50

// History answers history and search queries over the scan store.
type History struct {
	store    store.Store
	logger   logging.Logger
	pageSize int
}

// New constructs a History reader. pageSize <= 0 uses DefaultPageSize.
func New(s store.Store, logger logging.Logger, pageSize int) (*History, error) {
	if s == nil {
		return nil, errors.New("history: nil store provided")
	}
	if logger == nil {
		return nil, errors.New("history: nil logger provided")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &History{store: s, logger: logger, pageSize: pageSize}, nil
}

// Recent returns the most recent page of scans, newest first.
func (h *History) Recent(ctx context.Context) ([]*model.ScanRecord, error) {
	recs, err := h.store.GetRecent(ctx, h.pageSize)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	if recs == nil {
		recs = []*model.ScanRecord{}
	}
	return recs, nil
}

// Search filters the most recent page by term: a record matches when its
// url or threat level contains term case-insensitively. An empty term
// returns the page unfiltered.
func (h *History) Search(ctx context.Context, term string) ([]*model.ScanRecord, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return h.Recent(ctx)
	}

	// Filter within the recent page rather than the whole table, so the
	// search scope matches what the history view shows.
	page, err := h.store.GetRecent(ctx, h.pageSize)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}

	lower := strings.ToLower(term)
	out := make([]*model.ScanRecord, 0, len(page))
	for _, r := range page {
		if strings.Contains(strings.ToLower(r.URL), lower) ||
			strings.Contains(strings.ToLower(string(r.ThreatLevel)), lower) {
			out = append(out, r)
		}
	}
	return out, nil
}
