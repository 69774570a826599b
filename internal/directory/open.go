package directory

import "fmt"

// Options selects and parameterizes a directory backend.
type Options struct {
	Backend     string // "memory" (default), "sqlite", or "postgres"
	SQLitePath  string
	PostgresDSN string
	Users       []Identity // seed records for the memory backend
}

// Open builds the configured Store.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(opts.Users), nil
	case "sqlite":
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("directory: sqlite backend requires a path")
		}
		return NewSQLiteStore(opts.SQLitePath)
	case "postgres":
		if opts.PostgresDSN == "" {
			return nil, fmt.Errorf("directory: postgres backend requires SWITCHBOARD_POSTGRES_DSN")
		}
		return NewPGStore(opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("directory: unknown backend %q", opts.Backend)
	}
}
