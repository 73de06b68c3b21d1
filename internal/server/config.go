package server

import (
	"github.com/raysh454/securescan/internal/analyzer"
	"github.com/raysh454/securescan/internal/app"
	"github.com/raysh454/securescan/internal/interfaces"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/store"
)

// Config configures the HTTP server and the components it owns.
type Config struct {
	// ListenAddr is the address HTTPServer binds to, e.g. ":8080".
	ListenAddr string

	// DBPath is the SQLite database file. Ignored when Store is set.
	DBPath string

	// NATSURL is the broker for scan.completed events. Empty disables
	// publishing.
	NATSURL string

	// HistoryPageSize bounds the /history page. <= 0 uses the default.
	HistoryPageSize int

	AppConfig      *app.Config
	AnalyzerConfig *analyzer.Config

	Logger logging.Logger

	// Store, when non-nil, replaces the SQLite store. Tests use this.
	Store store.Store

	// Analyzer, when non-nil, replaces the configured backend. Tests use this.
	Analyzer interfaces.Analyzer
}
