// Package migrate moves data from the legacy flat store into the
// replicated document. The migration is one-shot and idempotent: it
// detects legacy data, copies every collection in one atomic change,
// and deletes the legacy keys. A failed copy leaves the document
// untouched and must be surfaced to the user - this path never loses
// data silently.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/legacy"
	"github.com/kardexapp/kardex/internal/store"
)

// Runner executes the legacy-to-document migration.
type Runner struct {
	Legacy *legacy.Adapter
	Store  *store.Store
}

// NewRunner builds a migration runner over an initialized store.
func NewRunner(l *legacy.Adapter, s *store.Store) *Runner {
	return &Runner{Legacy: l, Store: s}
}

// Run performs the migration. Returns migrated=true only when legacy
// data was actually copied into the document.
//
// Algorithm:
//  1. No legacy products key: nothing to do.
//  2. Destination already has products: the legacy copy is stale (the
//     user has edited post-migration data) - delete the legacy keys and
//     leave the document alone.
//  3. Otherwise copy every legacy collection into the document in one
//     Change call, then delete the legacy keys.
//
// Any error in step 3 aborts with no partial write; the caller must
// halt startup and surface the failure. Safe to re-run: a second run
// lands in branch 1 or 2.
func (r *Runner) Run(ctx context.Context) (migrated bool, err error) {
	hasLegacy, err := r.Legacy.HasProducts(ctx)
	if err != nil {
		return false, fmt.Errorf("migrate: %w", err)
	}
	if !hasLegacy {
		return false, nil
	}

	dest := r.Store.Snapshot()
	if dest == nil {
		return false, fmt.Errorf("migrate: document store not initialized")
	}
	if len(dest.Products) > 0 {
		slog.Info("legacy data is stale, discarding", "destination_products", len(dest.Products))
		if err := r.Legacy.DeleteAll(ctx); err != nil {
			return false, fmt.Errorf("migrate: discard stale legacy keys: %w", err)
		}
		return false, nil
	}

	data, err := r.Legacy.ReadAll(ctx)
	if err != nil {
		return false, fmt.Errorf("migrate: read legacy store: %w", err)
	}

	err = r.Store.Change(ctx, "migrate legacy store", func(d *doc.Document) error {
		applyLegacy(d, data)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("migrate: copy into document: %w", err)
	}

	if err := r.Legacy.DeleteAll(ctx); err != nil {
		// The copy is committed; a failed cleanup re-runs into branch 2
		// next time, which deletes the keys without re-migrating.
		return true, fmt.Errorf("migrate: delete legacy keys: %w", err)
	}

	slog.Info("legacy store migrated",
		"products", len(data.Products),
		"ledgers", len(data.Movements),
		"audit_entries", len(data.AuditLog))
	return true, nil
}

// applyLegacy overlays parsed legacy data onto a seeded document.
// Collections the legacy store did not carry keep their seeded defaults.
func applyLegacy(d *doc.Document, data legacy.Data) {
	if data.Products != nil {
		d.Products = data.Products
	}
	if data.HasPreferences {
		d.Preferences = data.Preferences
	}
	if data.IgnoredIDs != nil {
		d.IgnoredProductIDs = data.IgnoredIDs
	}
	if data.Categories != nil {
		d.AllCategories = data.Categories
	}
	if data.Movements != nil {
		d.Movements = data.Movements
	}
	if data.ManualMovements != nil {
		d.ManualMovements = data.ManualMovements
	}
	if data.AuditLog != nil {
		d.AuditLog = data.AuditLog
	}

	// Categories referenced by migrated products always end up in the
	// category set, whatever the legacy categories key said.
	for _, p := range d.Products {
		d.EnsureCategory(p.Category)
	}
}
