package ledger

import (
	"context"
	"fmt"

	"github.com/kardexapp/kardex/internal/doc"
)

// ManualMovementInput describes one manual financial event.
type ManualMovementInput struct {
	Type        doc.ManualMovementType
	Amount      float64 // signed; positive = income
	Description string
	Timestamp   int64 // ms epoch; 0 means "now"
}

// AddManualMovement appends a financial event independent of any
// variant (expense, investment, other income).
func (e *Engine) AddManualMovement(ctx context.Context, in ManualMovementInput) (doc.ManualMovement, error) {
	if in.Amount == 0 {
		return doc.ManualMovement{}, &OpError{Code: ErrCodeZeroAmount, Message: "manual movement amount must not be zero"}
	}
	if !doc.ValidManualMovementTypes[in.Type] {
		return doc.ManualMovement{}, &OpError{Code: ErrCodeInvalidType, Message: fmt.Sprintf("unknown manual movement type %q", in.Type)}
	}

	ts := in.Timestamp
	if ts == 0 {
		ts = e.ts()
	}
	m := doc.ManualMovement{
		ID:          doc.NewID(),
		Timestamp:   ts,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
	}

	err := e.store.Change(ctx, "add manual movement", func(d *doc.Document) error {
		d.ManualMovements = append(d.ManualMovements, m)
		return nil
	})
	if err != nil {
		return doc.ManualMovement{}, err
	}
	return m, nil
}

// DeleteManualMovement removes one manual movement by id.
func (e *Engine) DeleteManualMovement(ctx context.Context, id string) error {
	return e.store.Change(ctx, "delete manual movement", func(d *doc.Document) error {
		for i := range d.ManualMovements {
			if d.ManualMovements[i].ID == id {
				d.ManualMovements = append(d.ManualMovements[:i], d.ManualMovements[i+1:]...)
				return nil
			}
		}
		return &OpError{Code: ErrCodeMovementNotFound, Message: "manual movement not found"}
	})
}

// SetPreference mutates display settings field by field. Preferences
// are created at initialization and never deleted.
func (e *Engine) SetPreference(ctx context.Context, fn func(*doc.Preferences)) error {
	return e.store.Change(ctx, "set preference", func(d *doc.Document) error {
		fn(&d.Preferences)
		return nil
	})
}

// ResetAll wipes the document back to its seeded defaults. Destructive;
// callers gate it behind explicit confirmation. The fresh audit log
// carries a single full_reset entry so the wipe itself stays on record.
func (e *Engine) ResetAll(ctx context.Context) error {
	return e.store.Change(ctx, "full reset", func(d *doc.Document) error {
		*d = *doc.NewDocument()
		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "full_reset",
			Message:   "All data wiped back to defaults",
		})
		return nil
	})
}

// RestoreBackup replaces the entire document body from a full-state
// backup. Destructive; callers gate it behind explicit confirmation.
func (e *Engine) RestoreBackup(ctx context.Context, backup doc.Document) error {
	return e.store.Change(ctx, "restore backup", func(d *doc.Document) error {
		restored := backup.Clone()
		if restored.Movements == nil {
			restored.Movements = map[string][]doc.Movement{}
		}
		*d = *restored
		d.AppendAudit(doc.AuditEntry{
			ID:        doc.NewID(),
			Timestamp: e.ts(),
			Type:      "backup_restore",
			Message:   fmt.Sprintf("Restored backup with %d product(s)", len(restored.Products)),
		})
		return nil
	})
}
