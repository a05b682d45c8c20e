package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kardexapp/kardex/internal/doc"
)

// RepairReport summarizes a duplicate-id repair for caller confirmation.
type RepairReport struct {
	RepairedCount int      `json:"repaired_count"`
	DuplicateIDs  []string `json:"duplicate_ids"`
}

// FindDuplicateVariantIDs scans all variants across all products and
// returns the identifiers shared by more than one variant, in
// first-encounter order. Read-only; used to preview a repair.
func FindDuplicateVariantIDs(d *doc.Document) []string {
	seen := map[string]int{}
	var order []string
	for _, p := range d.Products {
		for _, v := range p.Variants {
			seen[v.ID]++
			if seen[v.ID] == 2 {
				order = append(order, v.ID)
			}
		}
	}
	return order
}

// RepairDuplicateVariantIDs fixes variants that ended up sharing an
// identifier (independently created on different devices before their
// documents merged).
//
// For every duplicated identifier the first-encountered product keeps
// its variant unchanged. Each later occurrence gets a fresh identifier
// and a single synthesized Initial movement equal to its current stock;
// its old history stays attached to the original identifier. That makes
// the repair lossy for the reassigned variants' history, which is why
// every caller must gate it behind explicit user confirmation.
//
// Total units are preserved: stock is carried over one-to-one into the
// synthesized Initial movements.
func (e *Engine) RepairDuplicateVariantIDs(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	err := e.store.Change(ctx, "repair duplicate variant ids", func(d *doc.Document) error {
		duplicates := FindDuplicateVariantIDs(d)
		if len(duplicates) == 0 {
			return nil
		}

		ts := e.ts()
		seen := map[string]bool{}
		for pi := range d.Products {
			for vi := range d.Products[pi].Variants {
				v := &d.Products[pi].Variants[vi]
				if !seen[v.ID] {
					seen[v.ID] = true
					continue
				}

				// Later occurrence: reassign. History stays under the
				// old id, orphaned from this variant.
				v.ID = doc.NewID()
				d.Movements[v.ID] = []doc.Movement{{
					ID:        doc.NewID(),
					VariantID: v.ID,
					Timestamp: ts,
					Type:      doc.MovementInitial,
					Change:    v.Stock,
					NewStock:  clampStock(v.Stock),
					Notes:     "Stock carried over by duplicate-id repair",
				}}
				report.RepairedCount++
			}
		}

		report.DuplicateIDs = duplicates
		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: ts,
			Type:      "repair_duplicates",
			Message:   fmt.Sprintf("Repaired %d duplicated variant id(s)", report.RepairedCount),
		})
		return nil
	})
	if err != nil {
		return RepairReport{}, err
	}

	if report.RepairedCount > 0 {
		slog.Info("duplicate variant ids repaired",
			"repaired", report.RepairedCount, "ids", report.DuplicateIDs)
	}
	return report, nil
}
