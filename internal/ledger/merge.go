package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kardexapp/kardex/internal/doc"
)

// MergeProducts folds the secondary product into the primary: the
// secondary's variants are appended to the primary's variant list and
// the secondary product is deleted. Movement ledgers transfer by
// reference - they key on variant ids, which do not change - so no
// history is rewritten.
//
// Colliding variant names are disambiguated by appending the origin
// product's first title word in parentheses.
//
// A no-op if either id is not found: callers pre-validate that both
// products exist before offering the merge.
func (e *Engine) MergeProducts(ctx context.Context, primaryID, secondaryID string) error {
	if primaryID == secondaryID {
		return nil
	}

	return e.store.Change(ctx, "merge products", func(d *doc.Document) error {
		primary := d.FindProduct(primaryID)
		secondaryIdx := -1
		for i := range d.Products {
			if d.Products[i].ID == secondaryID {
				secondaryIdx = i
				break
			}
		}
		if primary == nil || secondaryIdx < 0 {
			return nil
		}
		secondary := d.Products[secondaryIdx]

		taken := map[string]bool{}
		for _, v := range primary.Variants {
			taken[v.Name] = true
		}

		for _, v := range secondary.Variants {
			moved := v.Clone()
			if taken[moved.Name] {
				if word := doc.FirstTitleWord(secondary.Title); word != "" {
					moved.Name = fmt.Sprintf("%s (%s)", moved.Name, word)
				}
			}
			taken[moved.Name] = true
			primary.Variants = append(primary.Variants, moved)
		}

		primaryTitle := primary.Title
		mergedVariants := len(primary.Variants)

		// Remove the secondary, preserving the order of the rest. This
		// shifts slice elements, so primary must not be dereferenced
		// past this point.
		d.Products = append(d.Products[:secondaryIdx], d.Products[secondaryIdx+1:]...)

		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "product_merge",
			Message:   fmt.Sprintf("Merged %q into %q", secondary.Title, primaryTitle),
		})

		slog.Debug("products merged",
			"primary", primaryID, "secondary", secondaryID,
			"variants", mergedVariants)
		return nil
	})
}
