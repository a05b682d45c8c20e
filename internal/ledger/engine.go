// Package ledger implements every business mutation of the catalog.
//
// Each operation is exactly one store.Change call - the atomicity
// boundary is one user action. Stock is never written directly: every
// stock edit goes through the movement ledger, either by appending a
// movement or by recomputing the ledger after a retroactive deletion.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/store"
)

// Engine is the stock ledger mutation API. All methods resolve once the
// change is locally committed; UI-side state propagation happens through
// the store's change notifications, not through return values.
type Engine struct {
	store *store.Store
	now   func() time.Time
}

// New builds an engine over an initialized store. now defaults to
// time.Now; tests inject a deterministic clock.
func New(s *store.Store, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, now: now}
}

// Store exposes the underlying document store for read-side consumers.
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) ts() int64 {
	return e.now().UnixMilli()
}

// MovementInput describes one stock-affecting event to append.
type MovementInput struct {
	Type      doc.MovementType
	Change    int    // signed units; must not be zero
	Notes     string
	Timestamp int64 // ms epoch; 0 means "now"
}

// AppendMovement writes one movement to a variant's ledger and updates
// the variant's live stock in the same transaction. Stock is clamped at
// zero - an oversized sale drains to exactly 0.
//
// Sale movements capture the variant's current price and cost as
// snapshots, so later price edits never change historical profit.
func (e *Engine) AppendMovement(ctx context.Context, variantID string, in MovementInput) (doc.Movement, error) {
	if in.Change == 0 {
		return doc.Movement{}, &OpError{Code: ErrCodeZeroChange, Message: "movement change must not be zero", VariantID: variantID}
	}
	if !doc.ValidMovementTypes[in.Type] {
		return doc.Movement{}, &OpError{Code: ErrCodeInvalidType, Message: fmt.Sprintf("unknown movement type %q", in.Type), VariantID: variantID}
	}

	var written doc.Movement
	err := e.store.Change(ctx, "append movement", func(d *doc.Document) error {
		_, v := d.FindVariant(variantID)
		if v == nil {
			return &OpError{Code: ErrCodeVariantNotFound, Message: "variant not found", VariantID: variantID}
		}

		ts := in.Timestamp
		if ts == 0 {
			ts = e.ts()
		}

		m := doc.Movement{
			ID:        doc.NewID(),
			VariantID: variantID,
			Timestamp: ts,
			Type:      in.Type,
			Change:    in.Change,
			Notes:     in.Notes,
		}
		if in.Type == doc.MovementInitial {
			m.NewStock = clampStock(in.Change)
		} else {
			m.NewStock = clampStock(v.Stock + in.Change)
		}
		if in.Type == doc.MovementSale {
			m.SalePrice = v.Price
			m.SaleCost = v.Cost
		}

		d.Movements[variantID] = append(d.Movements[variantID], m)
		v.Stock = m.NewStock
		written = m
		return nil
	})
	if err != nil {
		return doc.Movement{}, err
	}

	slog.Debug("movement appended",
		"variant", variantID, "type", written.Type,
		"change", written.Change, "new_stock", written.NewStock)
	return written, nil
}

// SaveProduct upserts a product.
//
// For an existing product it diffs variants: a new variant gets a
// synthesized Initial movement equal to its stock; an existing variant
// whose stock changed gets an Adjustment for the delta (skipped when the
// delta is zero). For a new product every variant gets an Initial
// movement. Exactly one audit entry is appended (product_add or
// product_edit). Stock itself is only ever written in lockstep with
// those ledger writes.
func (e *Engine) SaveProduct(ctx context.Context, p doc.Product) error {
	if len(p.Variants) == 0 {
		return &OpError{Code: ErrCodeEmptyVariants, Message: "product needs at least one variant", ProductID: p.ID}
	}
	for _, v := range p.Variants {
		if v.Stock < 0 {
			return &OpError{Code: ErrCodeNegativeStock, Message: "variant stock must not be negative", ProductID: p.ID, VariantID: v.ID}
		}
	}

	return e.store.Change(ctx, "save product", func(d *doc.Document) error {
		incoming := p.Clone()
		if incoming.ID == "" {
			incoming.ID = doc.NewID()
		}
		for i := range incoming.Variants {
			if incoming.Variants[i].ID == "" {
				incoming.Variants[i].ID = doc.NewID()
			}
		}

		existing := d.FindProduct(incoming.ID)
		ts := e.ts()

		if existing == nil {
			for _, v := range incoming.Variants {
				e.seedInitial(d, v, ts)
			}
			d.Products = append(d.Products, incoming)
			d.EnsureCategory(incoming.Category)
			d.AppendAudit(doc.AuditEntry{
				ID:        doc.NewID(),
				Timestamp: ts,
				Type:      "product_add",
				Message:   fmt.Sprintf("Added product %q (%d variants)", incoming.Title, len(incoming.Variants)),
			})
			return nil
		}

		prevStock := map[string]int{}
		for _, v := range existing.Variants {
			prevStock[v.ID] = v.Stock
		}

		for _, v := range incoming.Variants {
			prev, known := prevStock[v.ID]
			switch {
			case !known:
				e.seedInitial(d, v, ts)
			case v.Stock != prev:
				delta := v.Stock - prev
				d.Movements[v.ID] = append(d.Movements[v.ID], doc.Movement{
					ID:        doc.NewID(),
					VariantID: v.ID,
					Timestamp: ts,
					Type:      doc.MovementAdjustment,
					Change:    delta,
					NewStock:  v.Stock,
					Notes:     "Stock edited on product",
				})
			}
		}

		*existing = incoming
		d.EnsureCategory(incoming.Category)
		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: ts,
			Type:      "product_edit",
			Message:   fmt.Sprintf("Edited product %q", incoming.Title),
		})
		return nil
	})
}

// seedInitial writes the Initial movement for a freshly created variant.
func (e *Engine) seedInitial(d *doc.Document, v doc.Variant, ts int64) {
	d.Movements[v.ID] = append(d.Movements[v.ID], doc.Movement{
		ID:        doc.NewID(),
		VariantID: v.ID,
		Timestamp: ts,
		Type:      doc.MovementInitial,
		Change:    v.Stock,
		NewStock:  clampStock(v.Stock),
		Notes:     "Initial stock",
	})
}

// DeleteProduct removes a product. Its movement ledgers are preserved
// for the audit trail - deleting the product forgets the catalog entry,
// not its history.
func (e *Engine) DeleteProduct(ctx context.Context, id string) error {
	return e.store.Change(ctx, "delete product", func(d *doc.Document) error {
		idx := -1
		for i := range d.Products {
			if d.Products[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &OpError{Code: ErrCodeProductNotFound, Message: "product not found", ProductID: id}
		}

		title := d.Products[idx].Title
		d.Products = append(d.Products[:idx], d.Products[idx+1:]...)
		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "product_delete",
			Message:   fmt.Sprintf("Deleted product %q", title),
		})
		return nil
	})
}

// DeleteMovements removes the named movements from a variant's ledger
// and recomputes the entire remaining ledger in timestamp order,
// rewriting every NewStock and setting the live stock to the final
// replayed value (0 if the ledger ends up empty).
//
// This is the only operation allowed to rewrite historical NewStock
// values.
func (e *Engine) DeleteMovements(ctx context.Context, variantID string, movementIDs []string) error {
	if len(movementIDs) == 0 {
		return nil
	}
	drop := map[string]bool{}
	for _, id := range movementIDs {
		drop[id] = true
	}

	return e.store.Change(ctx, "delete movements", func(d *doc.Document) error {
		ledger := d.Ledger(variantID)
		if ledger == nil {
			return &OpError{Code: ErrCodeVariantNotFound, Message: "no ledger for variant", VariantID: variantID}
		}

		matched := 0
		remaining := make([]doc.Movement, 0, len(ledger))
		for _, m := range ledger {
			if drop[m.ID] {
				matched++
				continue
			}
			remaining = append(remaining, m)
		}
		if matched != len(drop) {
			return &OpError{Code: ErrCodeMovementNotFound, Message: fmt.Sprintf("%d of %d movement ids not found", len(drop)-matched, len(drop)), VariantID: variantID}
		}

		replayed := Replay(remaining)
		if len(replayed) == 0 {
			delete(d.Movements, variantID)
		} else {
			d.Movements[variantID] = replayed
		}

		if _, v := d.FindVariant(variantID); v != nil {
			v.Stock = FinalStock(replayed)
		}

		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "movement_delete",
			Message:   fmt.Sprintf("Deleted %d movement(s), ledger recalculated", matched),
		})
		return nil
	})
}
