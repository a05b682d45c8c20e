package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardexapp/kardex/internal/ledger"
	"github.com/kardexapp/kardex/internal/legacy"
	"github.com/kardexapp/kardex/internal/load"
	"github.com/kardexapp/kardex/internal/migrate"
	"github.com/kardexapp/kardex/internal/store"
)

// App bundles the opened store with the services every command needs.
type App struct {
	Store    *store.Store
	Engine   *ledger.Engine
	Importer *load.Importer
	Migrated bool
}

// defaultActor identifies this process as one replication origin.
func defaultActor() string {
	host, err := os.Hostname()
	if err != nil {
		host = "kardex"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// openApp opens the store, seeds the document and runs the legacy
// migration. Any failure here is fatal to the command: the document
// must never be read or written half-initialized.
func openApp(ctx context.Context, opts *RootOptions) (*App, error) {
	path, err := ResolveDBPath(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve database path", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "create database directory", err)
	}

	s, err := store.Open(path, defaultActor())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	if err := s.Initialize(ctx); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "initialize document", err)
	}

	runner := migrate.NewRunner(legacy.NewAdapter(s.DB()), s)
	migrated, err := runner.Run(ctx)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError,
			"legacy migration failed; no data was lost, fix the cause and retry (kardex reset --confirm wipes everything as a last resort)", err)
	}

	eng := ledger.New(s, nil)
	return &App{
		Store:    s,
		Engine:   eng,
		Importer: load.NewImporter(eng),
		Migrated: migrated,
	}, nil
}

// Close releases the store.
func (a *App) Close() {
	a.Store.Close()
}
