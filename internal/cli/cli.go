package cli

import (
	"flag"
	"io"
)

// CLIArgs are the command-line arguments for one server run. Flags override
// the corresponding config-file values; empty means "use the file/default".
type CLIArgs struct {
	// ConfigPath is the YAML configuration file. Optional.
	ConfigPath string

	// Listen overrides the configured listen address.
	Listen string

	// DBPath overrides the configured SQLite database file.
	DBPath string

	// Backend overrides the configured analyzer backend.
	Backend string

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by
// passing arbitrary slices. The function is deterministic and does not read
// os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	fs := flag.NewFlagSet("securescan", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Path to YAML configuration file")
		listen     = fs.String("listen", "", "Listen address override, e.g. :8080")
		dbPath     = fs.String("db", "", "SQLite database path override")
		backend    = fs.String("backend", "", "Analyzer backend override: provider|heuristic")
	)

	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &CLIArgs{
		ConfigPath: *configPath,
		Listen:     *listen,
		DBPath:     *dbPath,
		Backend:    *backend,
		RawArgs:    args,
	}, nil
}
