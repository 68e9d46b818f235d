package cli

import (
	"fmt"
	"os"

	"github.com/roach88/geonudge/internal/config"
	"github.com/roach88/geonudge/internal/store"
)

// openDatabase resolves the database path (the --db flag, else store.path
// from the config) and opens it. A missing file is a command error rather
// than an empty new database.
func openDatabase(opts *RootOptions, dbFlag string) (*store.Store, *config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	path := cfg.Store.Path
	if dbFlag != "" {
		path = dbFlag
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, cfg, nil
}
