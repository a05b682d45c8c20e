package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneVariantScenario builds a scenario over a single seeded variant.
func oneVariantScenario(name string, flow []FlowStep, assertions []Assertion) *Scenario {
	return &Scenario{
		Name:        name,
		Description: "test scenario",
		Setup: Setup{Products: []SetupProduct{{
			ID:    "p1",
			Title: "Gorro de lana",
			Variants: []SetupVariant{{
				ID:    "v1",
				Name:  "Único",
				Stock: 5,
			}},
		}}},
		Flow:       flow,
		Assertions: assertions,
	}
}

func intp(v int) *int { return &v }

func TestRun_AppendFlow(t *testing.T) {
	result, err := Run(oneVariantScenario("append_flow",
		[]FlowStep{
			{Op: OpAppend, Variant: "v1", Type: "sale", Change: -2, Expect: &ExpectClause{Stock: intp(3)}},
			{Op: OpAppend, Variant: "v1", Type: "adjustment", Change: 10, Expect: &ExpectClause{Stock: intp(13)}},
		},
		[]Assertion{
			{Type: AssertStock, Variant: "v1", Value: 13},
			{Type: AssertLedgerLen, Variant: "v1", Value: 3},
			{Type: AssertLedgerStocks, Variant: "v1", Values: []int{5, 3, 13}},
			{Type: AssertVerifyClean},
		},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, OpAppend, result.Trace[0].Op)
	require.NotNil(t, result.Trace[0].NewStock)
	assert.Equal(t, 3, *result.Trace[0].NewStock)
}

func TestRun_ExpectedStockMismatchFails(t *testing.T) {
	result, err := Run(oneVariantScenario("stock_mismatch",
		[]FlowStep{
			{Op: OpAppend, Variant: "v1", Type: "sale", Change: -2, Expect: &ExpectClause{Stock: intp(99)}},
		},
		[]Assertion{{Type: AssertVerifyClean}},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected stock 99")
}

func TestRun_ExpectedRejectionPasses(t *testing.T) {
	result, err := Run(oneVariantScenario("expected_rejection",
		[]FlowStep{
			{Op: OpAppend, Variant: "v1", Type: "sale", Change: 0, Expect: &ExpectClause{Error: "ZERO_CHANGE"}},
		},
		[]Assertion{
			{Type: AssertStock, Variant: "v1", Value: 5},
			{Type: AssertLedgerLen, Variant: "v1", Value: 1},
		},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "ZERO_CHANGE", result.Trace[0].Error)
	assert.Nil(t, result.Trace[0].NewStock)
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	result, err := Run(oneVariantScenario("unexpected_rejection",
		[]FlowStep{
			{Op: OpAppend, Variant: "missing", Type: "sale", Change: -1},
		},
		[]Assertion{{Type: AssertVerifyClean}},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "VARIANT_NOT_FOUND")
}

func TestRun_AssertionFailureReported(t *testing.T) {
	result, err := Run(oneVariantScenario("assertion_failure",
		[]FlowStep{
			{Op: OpAppend, Variant: "v1", Type: "sale", Change: -2},
		},
		[]Assertion{{Type: AssertStock, Variant: "v1", Value: 4}},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "want stock 4, got 3")
}

func TestRun_DeleteMovementsRecalculates(t *testing.T) {
	result, err := Run(oneVariantScenario("delete_recalc",
		[]FlowStep{
			{Op: OpAppend, Variant: "v1", Type: "sale", Change: -2},
			{Op: OpAppend, Variant: "v1", Type: "stock_in", Change: 4},
			{Op: OpDeleteMovements, Variant: "v1", Indexes: []int{1}},
		},
		[]Assertion{
			{Type: AssertStock, Variant: "v1", Value: 9},
			{Type: AssertLedgerStocks, Variant: "v1", Values: []int{5, 9}},
			{Type: AssertVerifyClean},
		},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	last := result.Trace[2]
	assert.Equal(t, OpDeleteMovements, last.Op)
	assert.Equal(t, 1, last.Deleted)
	assert.Equal(t, []int{5, 9}, last.Stocks)
}

func TestRun_DeleteMovementsIndexOutOfRange(t *testing.T) {
	_, err := Run(oneVariantScenario("bad_index",
		[]FlowStep{
			{Op: OpDeleteMovements, Variant: "v1", Indexes: []int{5}},
		},
		[]Assertion{{Type: AssertVerifyClean}},
	))
	assert.ErrorContains(t, err, "index 5 out of range")
}

func TestRun_RepairSplitsDuplicates(t *testing.T) {
	scenario := &Scenario{
		Name:        "repair",
		Description: "duplicate variant ids",
		Setup: Setup{Products: []SetupProduct{
			{ID: "p1", Title: "Abrigo polar", Variants: []SetupVariant{{ID: "v1", Stock: 3}}},
			{ID: "p2", Title: "Collar cuero", Variants: []SetupVariant{{ID: "v1", Stock: 7}}},
		}},
		Flow: []FlowStep{{Op: OpRepair}},
		Assertions: []Assertion{
			{Type: AssertProductStock, Product: "p1", Value: 3},
			{Type: AssertProductStock, Product: "p2", Value: 7},
			{Type: AssertVerifyClean},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, 1, result.Trace[0].Repaired)
	assert.Equal(t, []string{"v1"}, result.Trace[0].DuplicateIDs)
}

func TestRun_MergeFoldsProducts(t *testing.T) {
	scenario := &Scenario{
		Name:        "merge",
		Description: "merge two products",
		Setup: Setup{Products: []SetupProduct{
			{ID: "p1", Title: "Gorro de lana", Variants: []SetupVariant{{ID: "v1", Stock: 5}}},
			{ID: "p2", Title: "Gorro viejo", Variants: []SetupVariant{{ID: "v2", Stock: 2}}},
		}},
		Flow: []FlowStep{{Op: OpMerge, Primary: "p1", Secondary: "p2"}},
		Assertions: []Assertion{
			{Type: AssertProductCount, Value: 1},
			{Type: AssertProductStock, Product: "p1", Value: 7},
			{Type: AssertVerifyClean},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Trace[0].Variants)
}

func TestRun_DeleteProductKeepsLedger(t *testing.T) {
	result, err := Run(oneVariantScenario("delete_product",
		[]FlowStep{
			{Op: OpDeleteProduct, Product: "p1"},
		},
		[]Assertion{
			{Type: AssertProductCount, Value: 0},
			{Type: AssertLedgerLen, Variant: "v1", Value: 1},
		},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSeed_ExplicitLedgerReplayed(t *testing.T) {
	scenario := &Scenario{
		Name:        "explicit_ledger",
		Description: "seeded history replays into consistent stocks",
		Setup: Setup{Products: []SetupProduct{{
			ID:    "p1",
			Title: "Pelota",
			Variants: []SetupVariant{{
				ID:    "v1",
				Stock: 7,
				Ledger: []SetupLedger{
					{Type: "initial", Change: 5},
					{Type: "sale", Change: -2},
					{Type: "stock_in", Change: 4},
				},
			}},
		}}},
		Flow: []FlowStep{{Op: OpRepair}},
		Assertions: []Assertion{
			{Type: AssertLedgerStocks, Variant: "v1", Values: []int{5, 3, 7}},
			{Type: AssertVerifyClean},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
