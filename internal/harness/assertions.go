package harness

import (
	"fmt"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
)

// EvaluateAssertions checks every assertion against the final document
// and returns one message per failure.
func EvaluateAssertions(assertions []Assertion, d *doc.Document) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluateAssertion(a, d); msg != "" {
			failures = append(failures, fmt.Sprintf("assertions[%d] %s: %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(a Assertion, d *doc.Document) string {
	switch a.Type {
	case AssertStock:
		_, v := d.FindVariant(a.Variant)
		if v == nil {
			return fmt.Sprintf("variant %s not found", a.Variant)
		}
		if v.Stock != a.Value {
			return fmt.Sprintf("variant %s: want stock %d, got %d", a.Variant, a.Value, v.Stock)
		}

	case AssertLedgerLen:
		got := len(d.Ledger(a.Variant))
		if got != a.Value {
			return fmt.Sprintf("variant %s: want %d ledger entries, got %d", a.Variant, a.Value, got)
		}

	case AssertLedgerStocks:
		replayed := ledger.Replay(d.Ledger(a.Variant))
		got := make([]int, len(replayed))
		for i, mv := range replayed {
			got[i] = mv.NewStock
		}
		if !equalInts(got, a.Values) {
			return fmt.Sprintf("variant %s: want stock sequence %v, got %v", a.Variant, a.Values, got)
		}

	case AssertProductStock:
		p := d.FindProduct(a.Product)
		if p == nil {
			return fmt.Sprintf("product %s not found", a.Product)
		}
		total := 0
		for _, v := range p.Variants {
			total += v.Stock
		}
		if total != a.Value {
			return fmt.Sprintf("product %s: want total stock %d, got %d", a.Product, a.Value, total)
		}

	case AssertProductCount:
		if len(d.Products) != a.Value {
			return fmt.Sprintf("want %d products, got %d", a.Value, len(d.Products))
		}

	case AssertAuditLen:
		if len(d.AuditLog) != a.Value {
			return fmt.Sprintf("want %d audit entries, got %d", a.Value, len(d.AuditLog))
		}

	case AssertVerifyClean:
		if violations := ledger.Verify(d); len(violations) > 0 {
			return fmt.Sprintf("document has %d invariant violation(s), first: %s", len(violations), violations[0].Message)
		}
	}
	return ""
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
