package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
	"github.com/kardexapp/kardex/internal/store"
	"github.com/kardexapp/kardex/internal/testutil"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	store  *store.Store
	engine *ledger.Engine
	clock  *testutil.Clock
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in its own in-memory database with a stepping
// clock, so two runs of the same scenario produce identical traces.
// Expect and assertion failures land in the result; a returned error
// means the harness itself could not execute the scenario.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", "harness")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	clock := testutil.NewClock()
	h := &Harness{
		store:  st,
		engine: ledger.New(st, clock.Now),
		clock:  clock,
	}

	result := NewResult()
	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to seed setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(scenario.Assertions, st.Snapshot()) {
		result.AddError(msg)
	}
	return result, nil
}

// seed writes the setup catalog to the document verbatim in one
// change. Variants without an explicit ledger get a synthesized
// Initial movement, unless their id already carries a ledger - that
// is how scenarios plant the duplicate-id corruption.
func (h *Harness) seed(ctx context.Context, setup Setup) error {
	return h.store.Change(ctx, "scenario setup", func(d *doc.Document) error {
		for _, sp := range setup.Products {
			p := doc.Product{
				ID:       sp.ID,
				Category: sp.Category,
				Title:    sp.Title,
			}
			for _, sv := range sp.Variants {
				name := sv.Name
				if name == "" {
					name = "Único"
				}
				p.Variants = append(p.Variants, doc.Variant{
					ID:    sv.ID,
					Name:  name,
					SKU:   sv.SKU,
					Price: sv.Price,
					Cost:  sv.Cost,
					Stock: sv.Stock,
				})

				if len(d.Movements[sv.ID]) > 0 && len(sv.Ledger) == 0 {
					continue
				}
				entries := sv.Ledger
				if len(entries) == 0 {
					entries = []SetupLedger{{Type: string(doc.MovementInitial), Change: sv.Stock}}
				}
				var movs []doc.Movement
				for _, entry := range entries {
					movs = append(movs, doc.Movement{
						ID:        doc.NewID(),
						VariantID: sv.ID,
						Timestamp: h.clock.Now().UnixMilli(),
						Type:      doc.MovementType(entry.Type),
						Change:    entry.Change,
					})
				}
				// Replay fills NewStock so the seeded ledger is
				// internally consistent.
				d.Movements[sv.ID] = append(d.Movements[sv.ID], ledger.Replay(movs)...)
			}
			d.Products = append(d.Products, p)
			if sp.Category != "" && !containsString(d.AllCategories, sp.Category) {
				d.AllCategories = append(d.AllCategories, sp.Category)
			}
		}
		return nil
	})
}

// executeFlow runs all flow steps, tracing each one and validating
// expect clauses against the actual outcome.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		var err error
		switch step.Op {
		case OpAppend:
			err = h.runAppend(ctx, i, step, result)
		case OpDeleteMovements:
			err = h.runDeleteMovements(ctx, i, step, result)
		case OpRepair:
			err = h.runRepair(ctx, result)
		case OpMerge:
			err = h.runMerge(ctx, step, result)
		case OpDeleteProduct:
			err = h.runDeleteProduct(ctx, step, result)
		default:
			err = fmt.Errorf("unknown op %q", step.Op)
		}
		if err != nil {
			return fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
	}
	return nil
}

func (h *Harness) runAppend(ctx context.Context, index int, step FlowStep, result *Result) error {
	mv, err := h.engine.AppendMovement(ctx, step.Variant, ledger.MovementInput{
		Type:   doc.MovementType(step.Type),
		Change: step.Change,
		Notes:  step.Notes,
	})
	if err != nil {
		code := opErrorCode(err)
		if code == "" {
			return err
		}
		result.AddTrace(TraceEvent{Op: OpAppend, Variant: step.Variant, Error: code})
		if step.Expect == nil || step.Expect.Error != code {
			result.AddError(fmt.Sprintf("flow[%d]: append %s rejected with %s", index, step.Variant, code))
		}
		return nil
	}

	stock := mv.NewStock
	result.AddTrace(TraceEvent{
		Op:       OpAppend,
		Variant:  step.Variant,
		Type:     step.Type,
		Change:   step.Change,
		NewStock: &stock,
	})
	if step.Expect != nil {
		if step.Expect.Error != "" {
			result.AddError(fmt.Sprintf("flow[%d]: expected error %s, append succeeded", index, step.Expect.Error))
		}
		if step.Expect.Stock != nil && *step.Expect.Stock != mv.NewStock {
			result.AddError(fmt.Sprintf("flow[%d]: expected stock %d after append, got %d", index, *step.Expect.Stock, mv.NewStock))
		}
	}
	return nil
}

func (h *Harness) runDeleteMovements(ctx context.Context, index int, step FlowStep, result *Result) error {
	// Resolve timestamp-order positions to movement ids before the
	// deletion rewrites the ledger.
	sorted := ledger.Replay(h.store.Snapshot().Ledger(step.Variant))
	var ids []string
	for _, pos := range step.Indexes {
		if pos < 0 || pos >= len(sorted) {
			return fmt.Errorf("index %d out of range, ledger has %d entries", pos, len(sorted))
		}
		ids = append(ids, sorted[pos].ID)
	}

	if err := h.engine.DeleteMovements(ctx, step.Variant, ids); err != nil {
		code := opErrorCode(err)
		if code == "" {
			return err
		}
		result.AddTrace(TraceEvent{Op: OpDeleteMovements, Variant: step.Variant, Error: code})
		if step.Expect == nil || step.Expect.Error != code {
			result.AddError(fmt.Sprintf("flow[%d]: delete_movements %s rejected with %s", index, step.Variant, code))
		}
		return nil
	}

	d := h.store.Snapshot()
	replayed := ledger.Replay(d.Ledger(step.Variant))
	stocks := make([]int, len(replayed))
	for i, mv := range replayed {
		stocks[i] = mv.NewStock
	}
	stock := ledger.FinalStock(replayed)
	result.AddTrace(TraceEvent{
		Op:       OpDeleteMovements,
		Variant:  step.Variant,
		NewStock: &stock,
		Stocks:   stocks,
		Deleted:  len(ids),
	})
	return nil
}

func (h *Harness) runRepair(ctx context.Context, result *Result) error {
	report, err := h.engine.RepairDuplicateVariantIDs(ctx)
	if err != nil {
		return err
	}
	result.AddTrace(TraceEvent{
		Op:           OpRepair,
		Repaired:     report.RepairedCount,
		DuplicateIDs: report.DuplicateIDs,
	})
	return nil
}

func (h *Harness) runMerge(ctx context.Context, step FlowStep, result *Result) error {
	if err := h.engine.MergeProducts(ctx, step.Primary, step.Secondary); err != nil {
		return err
	}
	variants := 0
	if p := h.store.Snapshot().FindProduct(step.Primary); p != nil {
		variants = len(p.Variants)
	}
	result.AddTrace(TraceEvent{
		Op:        OpMerge,
		Primary:   step.Primary,
		Secondary: step.Secondary,
		Variants:  variants,
	})
	return nil
}

func (h *Harness) runDeleteProduct(ctx context.Context, step FlowStep, result *Result) error {
	if err := h.engine.DeleteProduct(ctx, step.Product); err != nil {
		code := opErrorCode(err)
		if code == "" {
			return err
		}
		result.AddTrace(TraceEvent{Op: OpDeleteProduct, Product: step.Product, Error: code})
		if step.Expect == nil || step.Expect.Error != code {
			result.AddError(fmt.Sprintf("delete_product %s rejected with %s", step.Product, code))
		}
		return nil
	}
	result.AddTrace(TraceEvent{Op: OpDeleteProduct, Product: step.Product})
	return nil
}

// opErrorCode extracts the rejection code, or "" for non-operation
// errors (which abort the run).
func opErrorCode(err error) string {
	var opErr *ledger.OpError
	if errors.As(err, &opErr) {
		return string(opErr.Code)
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
