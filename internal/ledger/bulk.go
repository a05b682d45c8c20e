package ledger

import (
	"context"
	"fmt"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/store"
)

// BulkChanges describes a bulk edit. Nil/empty fields are left alone.
type BulkChanges struct {
	Category *string  // overwrite category when set
	AddTags  []string // unioned into ImageHint; tags are never removed
}

// BulkEdit applies the changes to every selected product in one change,
// with a single audit entry summarizing the count. A selection matching
// no product commits nothing.
func (e *Engine) BulkEdit(ctx context.Context, ids []string, changes BulkChanges) error {
	if len(ids) == 0 {
		return nil
	}
	selected := idSet(ids)

	return e.store.Change(ctx, "bulk edit", func(d *doc.Document) error {
		edited := 0
		for i := range d.Products {
			p := &d.Products[i]
			if !selected[p.ID] {
				continue
			}
			if changes.Category != nil {
				p.Category = *changes.Category
				d.EnsureCategory(*changes.Category)
			}
			for _, tag := range changes.AddTags {
				if tag != "" && !contains(p.ImageHint, tag) {
					p.ImageHint = append(p.ImageHint, tag)
				}
			}
			edited++
		}
		if edited == 0 {
			return store.ErrNoChange
		}

		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "bulk_edit",
			Message:   fmt.Sprintf("Bulk-edited %d product(s)", edited),
		})
		return nil
	})
}

// BulkIgnore unions the ids into the ignored-product set (soft hide).
func (e *Engine) BulkIgnore(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return e.store.Change(ctx, "bulk ignore", func(d *doc.Document) error {
		added := 0
		for _, id := range ids {
			if id == "" || contains(d.IgnoredProductIDs, id) {
				continue
			}
			d.IgnoredProductIDs = append(d.IgnoredProductIDs, id)
			added++
		}
		if added == 0 {
			return store.ErrNoChange
		}

		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "bulk_ignore",
			Message:   fmt.Sprintf("Hid %d product(s)", added),
		})
		return nil
	})
}

// BulkDelete removes every selected product, preserving the order of the
// remainder. Movement ledgers are retained, consistent with the
// single-delete policy.
func (e *Engine) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	selected := idSet(ids)

	return e.store.Change(ctx, "bulk delete", func(d *doc.Document) error {
		kept := d.Products[:0]
		removed := 0
		for _, p := range d.Products {
			if selected[p.ID] {
				removed++
				continue
			}
			kept = append(kept, p)
		}
		if removed == 0 {
			return store.ErrNoChange
		}
		d.Products = kept

		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "bulk_delete",
			Message:   fmt.Sprintf("Deleted %d product(s)", removed),
		})
		return nil
	})
}

// LoadBulk replaces the product list wholesale and unions newly seen
// categories into the category set. Movements are untouched - the
// caller decides whether to seed Initial movements (the JSON importer
// does; a backup restore brings its own ledgers).
func (e *Engine) LoadBulk(ctx context.Context, products []doc.Product) error {
	for _, p := range products {
		if len(p.Variants) == 0 {
			return &OpError{Code: ErrCodeEmptyVariants, Message: "product needs at least one variant", ProductID: p.ID}
		}
	}

	return e.store.Change(ctx, "bulk load", func(d *doc.Document) error {
		replaced := make([]doc.Product, len(products))
		for i, p := range products {
			replaced[i] = p.Clone()
			d.EnsureCategory(p.Category)
		}
		d.Products = replaced

		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "bulk_load",
			Message:   fmt.Sprintf("Loaded %d product(s)", len(replaced)),
		})
		return nil
	})
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
