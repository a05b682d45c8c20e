package ledger

import (
	"fmt"
	"sort"

	"github.com/kardexapp/kardex/internal/doc"
)

// Replay recomputes a variant's ledger from scratch.
//
// The input is treated as unordered - concurrent merges can interleave
// entries - so it is first sorted by timestamp (stable: ties keep input
// order). Then every NewStock is rewritten by the replay rule:
//
//	new = max(0, Initial ? change : prev + change)
//
// with prev starting at 0. The input is not mutated; the corrected
// sequence is returned. A variant's live stock must always equal
// FinalStock of its replayed ledger - this is the central invariant of
// the whole catalog.
func Replay(ledger []doc.Movement) []doc.Movement {
	out := doc.CloneLedger(ledger)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})

	prev := 0
	for i := range out {
		if out[i].Type == doc.MovementInitial {
			prev = clampStock(out[i].Change)
		} else {
			prev = clampStock(prev + out[i].Change)
		}
		out[i].NewStock = prev
	}
	return out
}

// FinalStock returns the stock a replayed ledger ends at: the last
// entry's NewStock, or 0 for an empty ledger.
func FinalStock(replayed []doc.Movement) int {
	if len(replayed) == 0 {
		return 0
	}
	return replayed[len(replayed)-1].NewStock
}

// clampStock floors stock at zero. Stock never goes negative; an
// oversized outbound movement drains to exactly 0.
func clampStock(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// InvariantViolation describes one detected inconsistency between a
// variant's stored state and its replayed ledger, or a broken identity
// invariant.
type InvariantViolation struct {
	Kind      string `json:"kind"` // "ledger_mismatch" | "stock_mismatch" | "duplicate_variant_id" | "duplicate_product_id"
	ProductID string `json:"product_id,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
	Message   string `json:"message"`
}

// Verify checks the whole document read-only and returns every
// violation found (empty means healthy):
//
//   - every stored NewStock equals the replay of its ledger
//   - every variant's live stock equals the replayed final stock
//   - no two products share an id
//   - no two variants share an id (the condition the repair fixes)
func Verify(d *doc.Document) []InvariantViolation {
	var out []InvariantViolation

	seenProducts := map[string]bool{}
	seenVariants := map[string]string{} // variant id -> first product id
	for _, p := range d.Products {
		if seenProducts[p.ID] {
			out = append(out, InvariantViolation{
				Kind:      "duplicate_product_id",
				ProductID: p.ID,
				Message:   fmt.Sprintf("product id %q appears more than once", p.ID),
			})
		}
		seenProducts[p.ID] = true

		for _, v := range p.Variants {
			if first, dup := seenVariants[v.ID]; dup {
				out = append(out, InvariantViolation{
					Kind:      "duplicate_variant_id",
					ProductID: p.ID,
					VariantID: v.ID,
					Message:   fmt.Sprintf("variant id %q already used by product %q", v.ID, first),
				})
			} else {
				seenVariants[v.ID] = p.ID
			}

			replayed := Replay(d.Ledger(v.ID))
			stored := sortedByTimestamp(d.Ledger(v.ID))
			for i := range replayed {
				if stored[i].NewStock != replayed[i].NewStock {
					out = append(out, InvariantViolation{
						Kind:      "ledger_mismatch",
						ProductID: p.ID,
						VariantID: v.ID,
						Message: fmt.Sprintf("movement %s has new_stock=%d, replay gives %d",
							stored[i].ID, stored[i].NewStock, replayed[i].NewStock),
					})
				}
			}
			if final := FinalStock(replayed); v.Stock != final {
				out = append(out, InvariantViolation{
					Kind:      "stock_mismatch",
					ProductID: p.ID,
					VariantID: v.ID,
					Message:   fmt.Sprintf("variant stock=%d, ledger replays to %d", v.Stock, final),
				})
			}
		}
	}

	return out
}

// sortedByTimestamp returns a timestamp-sorted copy without rewriting
// NewStock, for comparing stored values against a replay.
func sortedByTimestamp(ledger []doc.Movement) []doc.Movement {
	out := doc.CloneLedger(ledger)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
