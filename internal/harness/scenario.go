package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: seeded state, a flow of
// ledger operations, and assertions on the final document.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Setup seeds the document before the flow runs. See the package
	// documentation for the raw-seeding semantics.
	Setup Setup `yaml:"setup"`

	// Flow contains the operations to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final document state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup describes the seeded catalog.
type Setup struct {
	Products []SetupProduct `yaml:"products"`
}

// SetupProduct is one seeded product. The id is used verbatim.
type SetupProduct struct {
	ID       string         `yaml:"id"`
	Title    string         `yaml:"title"`
	Category string         `yaml:"category,omitempty"`
	Variants []SetupVariant `yaml:"variants"`
}

// SetupVariant is one seeded variant. When Ledger is empty and the
// variant's id has no ledger yet, a single Initial movement equal to
// Stock is synthesized.
type SetupVariant struct {
	ID     string        `yaml:"id"`
	Name   string        `yaml:"name,omitempty"`
	SKU    string        `yaml:"sku,omitempty"`
	Price  *float64      `yaml:"price,omitempty"`
	Cost   *float64      `yaml:"cost,omitempty"`
	Stock  int           `yaml:"stock"`
	Ledger []SetupLedger `yaml:"ledger,omitempty"`
}

// SetupLedger is one seeded movement. Timestamps are assigned by the
// harness clock in list order; NewStock is filled by replay.
type SetupLedger struct {
	Type   string `yaml:"type"`
	Change int    `yaml:"change"`
}

// Flow operation kinds.
const (
	OpAppend          = "append"
	OpDeleteMovements = "delete_movements"
	OpRepair          = "repair"
	OpMerge           = "merge"
	OpDeleteProduct   = "delete_product"
)

// FlowStep is one operation in the flow. Which fields apply depends on
// Op; validation enforces the required ones per kind.
type FlowStep struct {
	Op string `yaml:"op"`

	// Variant names the target variant (append, delete_movements).
	Variant string `yaml:"variant,omitempty"`

	// Type and Change describe the movement to append.
	Type   string `yaml:"type,omitempty"`
	Change int    `yaml:"change,omitempty"`
	Notes  string `yaml:"notes,omitempty"`

	// Indexes selects ledger entries by timestamp-order position
	// (delete_movements).
	Indexes []int `yaml:"indexes,omitempty"`

	// Primary and Secondary name the products to merge.
	Primary   string `yaml:"primary,omitempty"`
	Secondary string `yaml:"secondary,omitempty"`

	// Product names the product to delete (delete_product).
	Product string `yaml:"product,omitempty"`

	// Expect validates the operation's outcome. If nil the operation
	// is only required to not fail with an unexpected error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is the expected rejection code (e.g. "ZERO_CHANGE"). Empty
	// means the operation must succeed.
	Error string `yaml:"error,omitempty"`

	// Stock is the expected stock after an append.
	Stock *int `yaml:"stock,omitempty"`
}

// Assertion type constants.
const (
	AssertStock        = "stock"
	AssertLedgerLen    = "ledger_len"
	AssertLedgerStocks = "ledger_stocks"
	AssertProductStock = "product_stock"
	AssertProductCount = "product_count"
	AssertAuditLen     = "audit_len"
	AssertVerifyClean  = "verify_clean"
)

// Assertion validates the final document.
type Assertion struct {
	Type string `yaml:"type"`

	// Variant names the target variant (stock, ledger_len,
	// ledger_stocks).
	Variant string `yaml:"variant,omitempty"`

	// Product names the target product (product_stock).
	Product string `yaml:"product,omitempty"`

	// Value is the expected quantity (stock, ledger_len,
	// product_stock, product_count, audit_len).
	Value int `yaml:"value,omitempty"`

	// Values is the expected NewStock sequence (ledger_stocks).
	Values []int `yaml:"values,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently dropping a
// clause.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Setup.Products) == 0 {
		return fmt.Errorf("setup.products is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, p := range s.Setup.Products {
		if p.ID == "" {
			return fmt.Errorf("setup.products[%d]: id is required", i)
		}
		if p.Title == "" {
			return fmt.Errorf("setup.products[%d]: title is required", i)
		}
		if len(p.Variants) == 0 {
			return fmt.Errorf("setup.products[%d]: variants must be non-empty", i)
		}
		for j, v := range p.Variants {
			if v.ID == "" {
				return fmt.Errorf("setup.products[%d].variants[%d]: id is required", i, j)
			}
		}
	}

	for i, step := range s.Flow {
		if err := validateFlowStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateFlowStep validates a single flow step based on its op.
func validateFlowStep(index int, step *FlowStep) error {
	switch step.Op {
	case OpAppend:
		if step.Variant == "" {
			return fmt.Errorf("flow[%d]: variant is required for append", index)
		}
		if step.Type == "" {
			return fmt.Errorf("flow[%d]: type is required for append", index)
		}
	case OpDeleteMovements:
		if step.Variant == "" {
			return fmt.Errorf("flow[%d]: variant is required for delete_movements", index)
		}
		if len(step.Indexes) == 0 {
			return fmt.Errorf("flow[%d]: indexes list is required for delete_movements", index)
		}
	case OpRepair:
		// No arguments.
	case OpMerge:
		if step.Primary == "" || step.Secondary == "" {
			return fmt.Errorf("flow[%d]: primary and secondary are required for merge", index)
		}
	case OpDeleteProduct:
		if step.Product == "" {
			return fmt.Errorf("flow[%d]: product is required for delete_product", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertStock, AssertLedgerLen:
		if a.Variant == "" {
			return fmt.Errorf("assertions[%d]: variant is required for %s", index, a.Type)
		}
	case AssertLedgerStocks:
		if a.Variant == "" {
			return fmt.Errorf("assertions[%d]: variant is required for ledger_stocks", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for ledger_stocks", index)
		}
	case AssertProductStock:
		if a.Product == "" {
			return fmt.Errorf("assertions[%d]: product is required for product_stock", index)
		}
	case AssertProductCount, AssertAuditLen, AssertVerifyClean:
		// No target fields.
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
